package chatbot

import "github.com/hyperjump/kotae/internal/models"

var fallbackMessages = map[models.FallbackReason]string{
	models.ReasonNoMatch:             "Xin lỗi, tôi không tìm thấy câu trả lời cho câu hỏi của bạn. Vui lòng liên hệ với bộ phận hỗ trợ để được giúp đỡ.",
	models.ReasonEmptyQuery:          "Vui lòng nhập một câu hỏi để tôi có thể giúp bạn.",
	models.ReasonError:               "Có lỗi xảy ra khi xử lý câu hỏi của bạn. Vui lòng thử lại sau.",
	models.ReasonTimeout:             "Yêu cầu của bạn đã hết thời gian. Vui lòng thử lại.",
	models.ReasonMaintenance:         "Hệ thống hiện đang bảo trì. Vui lòng thử lại sau.",
	models.ReasonInsufficientContext: "Câu hỏi của bạn quá mơ hồ. Vui lòng cung cấp thêm chi tiết.",
}

// FallbackMessage returns the canned answer for reason. Unknown reasons get the no-match message.
func FallbackMessage(reason models.FallbackReason) string {
	if msg, ok := fallbackMessages[reason]; ok {
		return msg
	}
	return fallbackMessages[models.ReasonNoMatch]
}
