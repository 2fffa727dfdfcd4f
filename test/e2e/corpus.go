// Package e2e provides end-to-end tests over a student-affairs knowledge base.
package e2e

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
)

// Entry is a knowledge document together with the queries that must find it.
type Entry struct {
	ID       string
	Title    string
	Category models.Category
	Content  string
	// SearchQuery is a phrase that occurs only in this document.
	SearchQuery string
	// Question is a chat question answered from this document.
	Question string
}

// RuleCase is a curated rule and a question it must answer.
type RuleCase struct {
	Rule     *models.Rule
	Question string
}

// Corpus holds the documents, rules and off-topic questions of the E2E suite.
type Corpus struct {
	Entries   []Entry
	Rules     []RuleCase
	OffTopic  []string
	TotalDocs int
}

// BuildCorpus returns the fixed corpus. Document questions paraphrase their
// document closely so the hash embedder ranks them first; rule questions are
// the rule keywords themselves.
func BuildCorpus() *Corpus {
	entries := []Entry{
		{
			ID: "fee", Title: "Học phí", Category: models.CategoryFAQ,
			Content:     "Sinh viên đóng học phí mỗi học kỳ bằng chuyển khoản ngân hàng trước ngày 15 của tháng đầu tiên.",
			SearchQuery: "chuyển khoản ngân hàng",
			Question:    "đóng học phí bằng chuyển khoản ngân hàng trước ngày nào",
		},
		{
			ID: "library", Title: "Thư viện trung tâm", Category: models.CategoryGuide,
			Content:     "Thư viện trung tâm mở cửa từ 7 giờ sáng đến 21 giờ tối, kể cả thứ bảy.",
			SearchQuery: "thư viện trung tâm",
			Question:    "thư viện trung tâm mở cửa từ mấy giờ sáng đến mấy giờ tối",
		},
		{
			ID: "dorm", Title: "Ký túc xá", Category: models.CategoryProcedure,
			Content:     "Hồ sơ xin ở ký túc xá gồm đơn xin ở, bản sao căn cước và hai ảnh thẻ, nộp tại ban quản lý ký túc xá.",
			SearchQuery: "ký túc xá",
			Question:    "hồ sơ xin ở ký túc xá gồm những giấy tờ gì",
		},
		{
			ID: "scholarship", Title: "Học bổng khuyến khích học tập", Category: models.CategoryPolicy,
			Content:     "Học bổng khuyến khích học tập được xét theo điểm trung bình học kỳ từ 3.2 trở lên và kết quả rèn luyện loại tốt.",
			SearchQuery: "học bổng khuyến khích",
			Question:    "học bổng khuyến khích học tập được xét theo điểm trung bình bao nhiêu",
		},
		{
			ID: "conduct", Title: "Quy định đánh giá rèn luyện", Category: models.CategoryRegulation,
			Content:     "Quy định đánh giá rèn luyện chấm theo thang 100 điểm, sinh viên tự đánh giá trước rồi lớp họp xét.",
			SearchQuery: "thang 100 điểm",
			Question:    "quy định đánh giá rèn luyện chấm theo thang bao nhiêu điểm",
		},
		{
			ID: "summer", Title: "Mùa hè xanh", Category: models.CategoryActivity,
			Content:     "Chiến dịch tình nguyện Mùa hè xanh tuyển tình nguyện viên vào tháng 6 hằng năm qua đoàn khoa.",
			SearchQuery: "mùa hè xanh",
			Question:    "chiến dịch tình nguyện mùa hè xanh tuyển tình nguyện viên vào tháng mấy",
		},
		{
			ID: "deferral", Title: "Bảo lưu kết quả học tập", Category: models.CategoryProcedure,
			Content:     "Sinh viên được bảo lưu kết quả học tập tối đa hai học kỳ, nộp đơn tại phòng đào tạo.",
			SearchQuery: "bảo lưu kết quả",
			Question:    "được bảo lưu kết quả học tập tối đa mấy học kỳ",
		},
		{
			ID: "transcript", Title: "Cấp bảng điểm", Category: models.CategoryFAQ,
			Content:     "Bảng điểm có đóng dấu được cấp sau ba ngày làm việc tại bộ phận một cửa.",
			SearchQuery: "bộ phận một cửa",
			Question:    "bảng điểm có đóng dấu được cấp sau mấy ngày làm việc",
		},
		{
			ID: "insurance", Title: "Bảo hiểm y tế", Category: models.CategoryFAQ,
			Content:     "Bảo hiểm y tế là bắt buộc, mức đóng mỗi năm khoảng 680 nghìn đồng và được thu cùng học phí học kỳ một.",
			SearchQuery: "bảo hiểm y tế",
			Question:    "mức đóng bảo hiểm y tế mỗi năm khoảng bao nhiêu",
		},
		{
			ID: "internship", Title: "Thực tập tốt nghiệp", Category: models.CategoryGuide,
			Content:     "Thực tập tốt nghiệp kéo dài tám tuần, người học tự liên hệ doanh nghiệp hoặc nhận giới thiệu từ khoa.",
			SearchQuery: "thực tập tốt nghiệp",
			Question:    "thực tập tốt nghiệp kéo dài mấy tuần",
		},
		{
			ID: "parking", Title: "Bãi gửi xe", Category: models.CategoryFAQ,
			Content:     "Bãi gửi xe máy nằm sau nhà B, vé tháng có giá 50 nghìn đồng.",
			SearchQuery: "bãi gửi xe",
			Question:    "bãi gửi xe máy vé tháng có giá bao nhiêu",
		},
		{
			ID: "counseling", Title: "Tư vấn tâm lý", Category: models.CategoryGuide,
			Content:     "Phòng tư vấn tâm lý hỗ trợ miễn phí, đặt lịch hẹn qua cổng thông tin điện tử.",
			SearchQuery: "tư vấn tâm lý",
			Question:    "phòng tư vấn tâm lý có hỗ trợ miễn phí không",
		},
	}

	rules := []RuleCase{
		{
			Rule: &models.Rule{
				ID: "wifi", Keywords: []string{"mật khẩu wifi", "wifi"}, Priority: 8, IsActive: true,
				ResponseTemplate: "Mật khẩu wifi được gửi qua email trường vào đầu mỗi tháng.",
			},
			Question: "mật khẩu wifi",
		},
		{
			Rule: &models.Rule{
				ID: "email", Keywords: []string{"quên mật khẩu email"}, Priority: 8, IsActive: true,
				ResponseTemplate: "Đặt lại mật khẩu email tại trang tài khoản hoặc liên hệ phòng máy.",
			},
			Question: "quên mật khẩu email",
		},
		{
			Rule: &models.Rule{
				ID: "card", Keywords: []string{"mất thẻ", "làm lại thẻ"}, Priority: 6, IsActive: true,
				ResponseTemplate: "Làm lại thẻ tại bộ phận một cửa, lệ phí 30 nghìn đồng.",
			},
			Question: "làm lại thẻ",
		},
	}

	return &Corpus{
		Entries:   entries,
		Rules:     rules,
		OffTopic:  []string{"thời tiết Paris tuần này", "recipe for chocolate brownies"},
		TotalDocs: len(entries),
	}
}

// ToInputs converts the entries to indexer inputs for tenant.
func (c *Corpus) ToInputs(tenant string) []indexer.Input {
	out := make([]indexer.Input, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = indexer.Input{
			ID:       e.ID,
			TenantID: tenant,
			Title:    e.Title,
			Content:  e.Content,
			Category: string(e.Category),
		}
	}
	return out
}

// Entry returns the entry with the given ID.
func (c *Corpus) Entry(id string) (Entry, error) {
	for _, e := range c.Entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("no corpus entry %q", id)
}
