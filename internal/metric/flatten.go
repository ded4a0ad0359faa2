package metric

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dushixiang/promsight/internal/promclient"

	"github.com/prometheus/common/model"
)

// ErrMalformedSample 后端返回的样本无法解析
var ErrMalformedSample = errors.New("malformed sample")

// Flatten 将后端的分序列结果展开为扁平表
// 行顺序：先按序列到达顺序，再按序列内样本顺序，不做全局排序
// 结果为空或没有任何样本时返回 NoData 表，而不是错误
func Flatten(results []promclient.Result) (*Table, error) {
	table := &Table{}
	for i, series := range results {
		instance := labelOrUnknown(series.Metric, model.InstanceLabel)
		job := labelOrUnknown(series.Metric, model.JobLabel)

		for j, pair := range series.Samples() {
			if len(pair) != 2 {
				return nil, fmt.Errorf("%w: series %d sample %d has %d elements", ErrMalformedSample, i, j, len(pair))
			}
			ts, err := parseTimestamp(pair[0])
			if err != nil {
				return nil, fmt.Errorf("%w: series %d sample %d timestamp: %v", ErrMalformedSample, i, j, err)
			}
			value, err := parseValue(pair[1])
			if err != nil {
				return nil, fmt.Errorf("%w: series %d sample %d value: %v", ErrMalformedSample, i, j, err)
			}

			labels := make(map[string]string, len(series.Metric)+2)
			for k, v := range series.Metric {
				labels[k] = v
			}
			labels[string(model.InstanceLabel)] = instance
			labels[string(model.JobLabel)] = job

			table.Rows = append(table.Rows, Sample{
				Timestamp: ts,
				Labels:    labels,
				Value:     value,
			})
		}
	}
	return table, nil
}

func labelOrUnknown(labels map[string]string, name model.LabelName) string {
	if v, ok := labels[string(name)]; ok {
		return v
	}
	return UnknownLabel
}

// parseTimestamp 解析 epoch 秒（允许小数）
func parseTimestamp(raw interface{}) (time.Time, error) {
	secs, err := toFloat(raw)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("invalid epoch seconds %v", raw)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))), nil
}

// parseValue 解析样本值，Prometheus 的 "NaN"/"+Inf" 按浮点特殊值处理
func parseValue(raw interface{}) (float64, error) {
	return toFloat(raw)
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case string:
		return strconv.ParseFloat(v, 64)
	case json.Number:
		return strconv.ParseFloat(v.String(), 64)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
