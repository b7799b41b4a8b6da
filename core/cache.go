// core/cache.go
package core

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
)

// Cached populations let repeat runs of the same region skip the
// loaders. The blob is a small self-describing header followed by a gob
// body of the full SimulationInput; bumping cacheVersion invalidates
// every existing cache file.

var cacheMagic = [6]byte{'E', 'P', 'I', 'S', 'I', 'M'}

const cacheVersion int32 = 2

// ErrCacheVersion indicates a cache file written by an incompatible
// version.
var ErrCacheVersion = errors.New("population cache version mismatch")

// SavePopulation writes a built population to path, replacing any
// existing cache.
func SavePopulation(path string, input *SimulationInput) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating population cache: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writePopulation(w, input); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// LoadPopulation reads a cached population from path.
func LoadPopulation(path string) (*SimulationInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening population cache: %w", err)
	}
	defer f.Close()
	return readPopulation(bufio.NewReader(f))
}

func writePopulation(w io.Writer, input *SimulationInput) error {
	if _, err := w.Write(cacheMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, cacheVersion); err != nil {
		return err
	}
	if err := gob.NewEncoder(w).Encode(input); err != nil {
		return fmt.Errorf("encoding population: %w", err)
	}
	return nil
}

func readPopulation(r io.Reader) (*SimulationInput, error) {
	var magic [6]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("reading population cache header: %w", err)
	}
	if magic != cacheMagic {
		return nil, fmt.Errorf("not a population cache file")
	}
	var version int32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading population cache version: %w", err)
	}
	if version != cacheVersion {
		return nil, fmt.Errorf("%w: file has v%d, this build expects v%d", ErrCacheVersion, version, cacheVersion)
	}
	var input SimulationInput
	if err := gob.NewDecoder(r).Decode(&input); err != nil {
		return nil, fmt.Errorf("decoding population: %w", err)
	}
	return &input, nil
}
