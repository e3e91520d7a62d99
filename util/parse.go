package util

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// ReadFileLines reads a file and returns its lines.
func ReadFileLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ReadFileString reads a whole file as a string.
func ReadFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseKeyValueFile parses a file of "key: value" lines (/proc/meminfo,
// /proc/<pid>/status).
func ParseKeyValueFile(path string) (map[string]string, error) {
	lines, err := ReadFileLines(path)
	if err != nil {
		return nil, err
	}
	return ParseKeyValueLines(lines), nil
}

// ParseKeyValueLines splits each line on the first ':' (or on whitespace if
// there is none) into a key and a trimmed value.
func ParseKeyValueLines(lines []string) map[string]string {
	m := make(map[string]string, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var key, val string
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			key = strings.TrimSpace(line[:idx])
			val = strings.TrimSpace(line[idx+1:])
		} else if fields := strings.Fields(line); len(fields) > 0 {
			key = fields[0]
			val = strings.Join(fields[1:], " ")
		}
		if key != "" {
			m[key] = val
		}
	}
	return m
}

// ParseKB parses a "1234 kB" value and returns bytes. Empty input yields 0.
func ParseKB(s string) uint64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	return ParseUint64(fields[0]) * 1024
}

// ParseUint64 parses a string to uint64, returning 0 on error.
func ParseUint64(s string) uint64 {
	v, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return v
}

// ParseInt parses a string to int, returning 0 on error.
func ParseInt(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}
