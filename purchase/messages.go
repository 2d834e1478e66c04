package purchase

// Node names of the purchase topology.
const (
	NodePoliteness        = "politeness"
	NodePoliteWarning     = "polite_warning"
	NodeClassifyPayAmount = "classify_pay_amount"
	NodeAskProduct        = "ask_product"
	NodeCheckTool         = "check_tool"
	NodeAgent             = "agent"
	NodeNoTool            = "no_tool"
)

// LLMNodes lists the nodes that consult a language model.
var LLMNodes = []string{NodePoliteness, NodeClassifyPayAmount, NodeCheckTool, NodeAgent}

// Fixed replies of the terminal nodes.
const (
	MsgPoliteWarning = "존대말을 써주세요"
	MsgAskProduct    = "어떤 상품을 구매하시나요? 구체적으로 알려주세요."
	MsgNoTool        = "적절한 tool 이 존재하지 않습니다."
	MsgNoOutput      = "(출력 없음)"
)

// Classification instructions.
const (
	PolitenessInstruction = "사용자 발화가 한국어 존대말(높임말)인지 판별하라. 반말이거나 애매하면 NO, 존대말이면 YES.\n" +
		"반드시 YES 또는 NO만 출력하라. 다른 말 금지."

	PayIntentInstruction = "다음 사용자 발화에 '금액을 지불(결제)하겠다는 의사'가 분명히 포함되어 있으면 YES,\n" +
		"(숫자나 금액 표현 포함 등) 그렇지 않거나 정보가 부족하면 NO만 출력하라. 다른 말 금지."

	ToolCheckInstruction = "너는 제공된 MCP 도구 목록을 보고, 사용자 요청이 '특정 상품 구매/주문/결제'를 실제 수행할 수 있는 도구가 있는지 판단한다.\n" +
		"도구의 이름/설명 상 해당 액션을 수행할 수 있다고 합리적으로 볼 수 있을 때만 YES, 아니면 NO.\n" +
		"반드시 대문자 YES 또는 NO만 출력하라. 추가 설명 금지."
)
