// Package probe holds the logic of the diagnostic programs used to check
// that containers enforce their limits.
package probe

import (
	"golang.org/x/sys/unix"
)

// Block is an anonymous private mapping.
type Block []byte

// Allocate maps size bytes of anonymous memory. Under an address space limit
// the mapping is refused with ENOMEM instead of crashing the runtime.
func Allocate(size uint64) (Block, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return Block(b), nil
}

// Touch writes one byte per page so the block is backed by memory.
func (b Block) Touch() {
	page := unix.Getpagesize()
	for i := 0; i < len(b); i += page {
		b[i] = 1
	}
}

func (b Block) Release() error {
	return unix.Munmap(b)
}

// Spin burns CPU until the process is stopped.
func Spin() {
	x := uint64(1)
	for {
		x = x*6364136223846793005 + 1442695040888963407
	}
}
