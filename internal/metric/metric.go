package metric

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/common/model"
)

// UnknownLabel 缺失 instance/job 标签时的默认值
const UnknownLabel = "unknown"

// Sample 扁平表中的一行
type Sample struct {
	Timestamp time.Time         `json:"timestamp"`
	Labels    map[string]string `json:"labels"` // 至少包含 instance 与 job
	Value     float64           `json:"value"`
}

// Instance 样本的 instance 标签
func (s Sample) Instance() string {
	return s.Labels[string(model.InstanceLabel)]
}

// Job 样本的 job 标签
func (s Sample) Job() string {
	return s.Labels[string(model.JobLabel)]
}

// MarshalJSON NaN/±Inf 按 Prometheus 的写法输出为字符串
func (s Sample) MarshalJSON() ([]byte, error) {
	type plain Sample
	return json.Marshal(struct {
		plain
		Value interface{} `json:"value"`
	}{plain(s), jsonValue(s.Value)})
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	type plain Sample
	aux := struct {
		*plain
		Value json.RawMessage `json:"value"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v, err := parseJSONValue(aux.Value)
	if err != nil {
		return err
	}
	s.Value = v
	return nil
}

// DataPoint 图表数据点
type DataPoint struct {
	Timestamp int64   `json:"timestamp"` // 毫秒时间戳
	Value     float64 `json:"value"`
}

// Series 图表系列（按 instance/job 分组）
type Series struct {
	Name   string            `json:"name"`             // 系列名称
	Labels map[string]string `json:"labels,omitempty"` // 额外标签
	Data   []DataPoint       `json:"data"`             // 数据点列表
}

func (p DataPoint) MarshalJSON() ([]byte, error) {
	type plain DataPoint
	return json.Marshal(struct {
		plain
		Value interface{} `json:"value"`
	}{plain(p), jsonValue(p.Value)})
}

func (p *DataPoint) UnmarshalJSON(data []byte) error {
	type plain DataPoint
	aux := struct {
		*plain
		Value json.RawMessage `json:"value"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v, err := parseJSONValue(aux.Value)
	if err != nil {
		return err
	}
	p.Value = v
	return nil
}

// jsonValue encoding/json 不接受 NaN 与 ±Inf
func jsonValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return formatValue(v)
	}
	return v
}

func parseJSONValue(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, fmt.Errorf("metric: invalid value %q", text)
		}
		return v, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}
