package hashutil

import (
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// Prefix identifies the hash algorithm in manifest entries.
const Prefix = "blake3:"

// HashFile calculates the BLAKE3 checksum of a file.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	return HashReader(file)
}

// HashReader calculates the BLAKE3 checksum of everything read from r.
func HashReader(r io.Reader) (string, error) {
	hash := blake3.New(32, nil)
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%x", Prefix, hash.Sum(nil)), nil
}

// HashBytes calculates the BLAKE3 checksum of a byte slice.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%s%x", Prefix, sum[:])
}
