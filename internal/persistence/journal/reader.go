package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"colony.ai/internal/colony"
)

// ListFiles returns the journal files of one prefix in dir, oldest first.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	// The hour stamp sorts lexically.
	sort.Strings(out)
	return out, nil
}

// ReadLines calls fn for every JSON line of a journal file.
func ReadLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), n, err)
		}
	}
	return sc.Err()
}

// ReadCycles decodes every cycle report in dir, in write order.
func ReadCycles(dir string, fn func(r *colony.Report) error) error {
	files, err := ListFiles(dir, CyclePrefix)
	if err != nil {
		return err
	}
	for _, path := range files {
		err := ReadLines(path, func(line []byte) error {
			var r colony.Report
			if err := json.Unmarshal(line, &r); err != nil {
				return err
			}
			return fn(&r)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
