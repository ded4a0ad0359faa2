package promclient

// QueryResult Prometheus HTTP API 的响应信封
type QueryResult struct {
	Status    string   `json:"status"`
	Data      Data     `json:"data"`
	ErrorType string   `json:"errorType,omitempty"`
	Error     string   `json:"error,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Data 查询结果数据
type Data struct {
	ResultType string   `json:"resultType"` // matrix / vector / scalar / string
	Result     []Result `json:"result"`
}

// Result 单条时间序列
// Values: [[timestamp, "value"], ...]，matrix 类型使用
// Value: [timestamp, "value"]，vector 类型使用
// 时间戳与数值保持原始形态（字符串或 json.Number），由调用方解析
type Result struct {
	Metric map[string]string `json:"metric"`
	Values [][]interface{}   `json:"values,omitempty"`
	Value  []interface{}     `json:"value,omitempty"`
}

// Samples 返回序列的全部样本对，vector 结果视为单样本
func (r Result) Samples() [][]interface{} {
	if len(r.Values) > 0 {
		return r.Values
	}
	if len(r.Value) > 0 {
		return [][]interface{}{r.Value}
	}
	return nil
}
