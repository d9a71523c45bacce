package ai

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"ailedger/internal/core"
)

const schemaName = "ledger_transaction"

func categoryList() string {
	return strings.Join(core.CategoryLabels(), ", ")
}

func textPrompt(text string) string {
	return fmt.Sprintf(`你是一个专业的中文记账助手。请分析这段文本: "%s"。
1. 提取金额（默认为人民币 CNY）。
2. 匹配最合适的分类（必须是：%s）。
3. 生成简短的中文备注。
4. 判断是支出(EXPENSE)还是收入(INCOME)。
返回 JSON 格式。`, text, categoryList())
}

func imagePrompt() string {
	return fmt.Sprintf("请分析这张小票图片。提取总金额，判断消费类别（%s），并提取商户名称作为备注。如果是购物小票通常是支出。请返回 JSON。", categoryList())
}

func documentPrompt(text string) string {
	return fmt.Sprintf(`以下是一张电子小票或发票的文字内容:
"""
%s
"""
请提取总金额，判断消费类别（%s），提取商户名称作为备注，并判断是支出(EXPENSE)还是收入(INCOME)。如有日期请按 YYYY-MM-DD 返回。请返回 JSON。`, text, categoryList())
}

// transactionSchema is the structured output contract sent with every request.
func transactionSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"amount": {
				Type:        jsonschema.Number,
				Description: "交易金额，数字类型。",
			},
			"category": {
				Type:        jsonschema.String,
				Description: "分类必须是以下之一: " + categoryList() + "。",
				Enum:        core.CategoryLabels(),
			},
			"type": {
				Type:        jsonschema.String,
				Description: "EXPENSE (支出) 或 INCOME (收入)。",
				Enum:        []string{string(core.TypeExpense), string(core.TypeIncome)},
			},
			"note": {
				Type:        jsonschema.String,
				Description: "简短的中文备注。",
			},
			"date": {
				Type:        jsonschema.String,
				Description: "YYYY-MM-DD 格式，如果没有具体日期则为空。",
			},
		},
		Required: []string{"amount", "category", "type", "note"},
	}
}
