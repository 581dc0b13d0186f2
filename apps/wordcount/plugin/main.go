// Package main is the -buildmode=plugin entry point for the
// word-count sample app: it re-exports wordcount.Map/Reduce at the
// top level where mr.LoadApp's plugin.Lookup expects to find them. The
// logic itself lives in the importable apps/wordcount package so it
// can also be linked directly into tests.
package main

import (
	"mapreduce/apps/wordcount"
	"mapreduce/mr"
)

func Map(filename, contents string) []mr.KeyValue { return wordcount.Map(filename, contents) }

func Reduce(key string, values []string) string { return wordcount.Reduce(key, values) }

func main() {}
