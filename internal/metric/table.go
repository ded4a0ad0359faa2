package metric

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// DisplayTimeLayout 表格中时间戳的展示格式
const DisplayTimeLayout = "2006-01-02 15:04:05.000"

// Table 扁平化后的查询结果，以时间戳为展示索引
type Table struct {
	Rows []Sample `json:"rows"`
}

// NoData 没有任何可展示的样本
func (t *Table) NoData() bool {
	return t == nil || len(t.Rows) == 0
}

// Len 行数
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// String 渲染为对齐的文本表格（用于终端展示和提示词）
func (t *Table) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "timestamp\tinstance\tjob\tvalue\t")
	if t != nil {
		for _, row := range t.Rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
				row.Timestamp.Format(DisplayTimeLayout),
				row.Instance(),
				row.Job(),
				formatValue(row.Value))
		}
	}
	_ = w.Flush()
	return b.String()
}

// WriteCSV 以 CSV 格式输出
func (t *Table) WriteCSV(out io.Writer) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"timestamp", "instance", "job", "value"}); err != nil {
		return err
	}
	if t != nil {
		for _, row := range t.Rows {
			record := []string{
				row.Timestamp.Format(DisplayTimeLayout),
				row.Instance(),
				row.Job(),
				formatValue(row.Value),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// Series 按 instance/job 分组为图表系列，系列顺序为首次出现顺序
func (t *Table) Series() []Series {
	if t.NoData() {
		return []Series{}
	}

	index := make(map[string]int)
	var series []Series
	for _, row := range t.Rows {
		name := row.Instance() + "/" + row.Job()
		i, ok := index[name]
		if !ok {
			i = len(series)
			index[name] = i
			series = append(series, Series{
				Name: name,
				Labels: map[string]string{
					"instance": row.Instance(),
					"job":      row.Job(),
				},
			})
		}
		series[i].Data = append(series[i].Data, DataPoint{
			Timestamp: row.Timestamp.UnixMilli(),
			Value:     row.Value,
		})
	}
	return series
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
