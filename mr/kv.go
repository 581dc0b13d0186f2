package mr

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// KeyValue is the unit of data produced by a map call and consumed by
// a reduce call.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// byKey sorts a slice of KeyValue by key, used to make reduce output
// deterministic (spec requires sorted-key output for the test oracle,
// not for correctness).
type byKey []KeyValue

func (a byKey) Len() int           { return len(a) }
func (a byKey) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byKey) Less(i, j int) bool { return a[i].Key < a[j].Key }

func intermediateFilename(m, r int) string {
	return fmt.Sprintf("mr-%d-%d", m, r)
}

func outputFilename(r int) string {
	return fmt.Sprintf("mr-out-%d", r)
}

// writeIntermediate writes kvs as newline-delimited JSON to a
// temporary file and atomically renames it into place. The file is
// created even if kvs is empty, per spec.md §4.2 step 4.
func writeIntermediate(m, r int, kvs []KeyValue) error {
	final := intermediateFilename(m, r)
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, kv := range kvs {
		if err := enc.Encode(&kv); err != nil {
			f.Close()
			return fmt.Errorf("encode kv into %s: %w", tmp, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish %s: %w", final, err)
	}
	return nil
}

// readIntermediate reads all KeyValue records out of mr-{m}-{r}. A
// missing file is returned as an error — the caller decides whether
// that is fatal (it is, for reduce: see spec.md §5).
func readIntermediate(m, r int) ([]KeyValue, error) {
	name := intermediateFilename(m, r)
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	var kvs []KeyValue
	dec := json.NewDecoder(f)
	for dec.More() {
		var kv KeyValue
		if err := dec.Decode(&kv); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		kvs = append(kvs, kv)
	}
	return kvs, nil
}

// groupByKey sorts kvs by key and folds consecutive equal keys into
// (key, values) groups, in sorted-key order.
func groupByKey(kvs []KeyValue) []struct {
	Key    string
	Values []string
} {
	sort.Sort(byKey(kvs))

	var groups []struct {
		Key    string
		Values []string
	}
	i := 0
	for i < len(kvs) {
		j := i + 1
		for j < len(kvs) && kvs[j].Key == kvs[i].Key {
			j++
		}
		values := make([]string, 0, j-i)
		for k := i; k < j; k++ {
			values = append(values, kvs[k].Value)
		}
		groups = append(groups, struct {
			Key    string
			Values []string
		}{Key: kvs[i].Key, Values: values})
		i = j
	}
	return groups
}

// writeOutput writes tab-separated "{key}\t{value}\n" lines to
// mr-out-{r} via the same temp-file-then-rename discipline as
// writeIntermediate. kvs must already be in the desired output order.
func writeOutput(r int, kvs []KeyValue) error {
	final := outputFilename(r)
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	for _, kv := range kvs {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", kv.Key, kv.Value); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", tmp, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish %s: %w", final, err)
	}
	return nil
}
