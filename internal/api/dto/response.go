package dto

// Response 失败时的统一返回体；成功时在 ok 之外附带各接口自己的字段
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ItemsResponse 列表接口返回体
type ItemsResponse struct {
	OK    bool        `json:"ok"`
	Items interface{} `json:"items"`
	Next  string      `json:"next,omitempty"`
}

// StartThreadResp POST /start
type StartThreadResp struct {
	OK       bool   `json:"ok"`
	ThreadID string `json:"threadId"`
	Created  bool   `json:"created"`
}

// SendMessageResp POST /message
type SendMessageResp struct {
	OK      bool        `json:"ok"`
	Message *MessageDTO `json:"message,omitempty"`
}
