// Package mmap maps motion database files read-only into memory.
//
// A loaded database decodes its tables straight out of the mapping, so a
// file is read once without an intermediate copy through kernel buffers.
//
//	m, err := mmap.Open("walk.modb", mmap.AccessSequential)
//	if err != nil { ... }
//	defer m.Close()
//	bin, err := blob.Unmarshal(m.Bytes())
//
// Unix uses mmap(2) with madvise(2); Windows uses CreateFileMapping and
// MapViewOfFile, where access hints are ignored.
//
// Bytes must not be used after Close.
package mmap
