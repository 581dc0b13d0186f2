// Package wordcount is the bundled sample application: it counts
// occurrences of each word across a set of input files, reconstructed
// from the original Python WordCountApp (lowercased alphanumeric
// tokens, counted by the length of the values slice).
//
// Built as a plugin (-buildmode=plugin) it exposes Map and Reduce at
// its top level for mr.LoadApp; App exposes the same pair as a
// compile-time binding for the end-to-end tests.
package wordcount

import (
	"regexp"
	"strconv"
	"strings"

	"mapreduce/mr"
)

var wordPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Map splits contents into lowercased alphanumeric words and emits
// (word, "1") for each occurrence. filename is unused, matching the
// original application.
func Map(filename, contents string) []mr.KeyValue {
	words := wordPattern.FindAllString(contents, -1)
	kvs := make([]mr.KeyValue, 0, len(words))
	for _, w := range words {
		kvs = append(kvs, mr.KeyValue{Key: strings.ToLower(w), Value: "1"})
	}
	return kvs
}

// Reduce counts the occurrences reported in values.
func Reduce(key string, values []string) string {
	return strconv.Itoa(len(values))
}

// App is the compile-time mr.App binding for Map/Reduce, used by
// tests that link this package directly instead of loading it as a
// plugin.
var App = mr.NewApp(Map, Reduce)
