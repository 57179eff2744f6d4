package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CleanColumns are the columns kept in the clean dataset, in output order.
var CleanColumns = []string{
	"file_name",
	"quarter_end",
	"Revenue",
	"GrossProfit",
	"COGS",
	"OperatingExpenses",
	"OperatingIncome",
	"NetIncome",
}

// WriteClean copies the CleanColumns present in the report CSV read from r
// to w. Columns missing from the input are skipped.
func WriteClean(r io.Reader, w io.Writer) error {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return fmt.Errorf("empty report: no header row")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	var keep []int
	var names []string
	for _, c := range CleanColumns {
		if i, ok := index[c]; ok {
			keep = append(keep, i)
			names = append(names, c)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(names); err != nil {
		return err
	}
	out := make([]string, len(keep))
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read report: %w", err)
		}
		for j, i := range keep {
			out[j] = ""
			if i < len(rec) {
				out[j] = rec[i]
			}
		}
		if err := cw.Write(out); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CleanFile builds the clean dataset at outPath from the report CSV at inPath.
func CleanFile(inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer in.Close()

	return writeFileAtomic(outPath, func(w io.Writer) error {
		return WriteClean(in, w)
	})
}
