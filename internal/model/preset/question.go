package preset

// Question is a suggested prompt shown before the first exchange.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"` // 所属主题
}

// Seed provides the default questions of the park assistant.
func Seed() []Question {
	return []Question{
		{ID: "design-code-date", Text: "国家森林公园设计规范施行日期是啥时候？", Category: "规范"},
		{ID: "heating-principle", Text: "森林公园的供热工程的原则是什么？", Category: "规范"},
		{ID: "allowed-activities", Text: "森林公园内可以进行哪些活动？", Category: "游览"},
		{ID: "protected-objects", Text: "森林公园的主要保护对象有哪些？", Category: "保护"},
		{ID: "guide-service", Text: "如何申请森林公园的导游服务？", Category: "服务"},
	}
}
