package levels

import "github.com/fogbreaker/engine/internal/domain"

func after(prev int) *domain.UnlockRule {
	return &domain.UnlockRule{PrevLevel: prev, MinScore: UnlockScore}
}

var builtin = []domain.Level{
	{
		ID:            1,
		Title:         "Fear威胁 - 分手要挟",
		Description:   "TA把分手当作威胁工具，逼你立刻妥协。",
		Difficulty:    1,
		FogType:       domain.FogFear,
		Rounds:        3,
		Background:    "你回复稍慢，对方立刻把“分手”抛出来测试你的底线。",
		LearningFocus: []string{"边界表达", "不被时限勒索", "先稳情绪再回应"},
		Opponent: domain.Persona{
			Name:         "小美",
			Traits:       []string{"情绪冲动", "时限施压", "分手威胁"},
			SystemPrompt: "你叫小美。你通过“要分手”制造恐惧，让对方立即服从。\n请使用短句，强势追问和情绪化表达，每句话不超过30字。",
		},
	},
	{
		ID:            2,
		Title:         "Obligation绑架 - 礼物考验",
		Description:   "TA把关系等同于花钱义务，用比较逼你买单。",
		Difficulty:    1,
		FogType:       domain.FogObligation,
		Unlock:        after(1),
		Rounds:        4,
		Background:    "节日前夜，TA反复比较别人收到的礼物，要求你证明爱。",
		LearningFocus: []string{"区分爱与义务", "拆解比较话术", "提出可替代方案"},
		Opponent: domain.Persona{
			Name:         "小倩",
			Traits:       []string{"暗示消费", "比较施压", "温柔控制"},
			SystemPrompt: "你叫小倩。你通过“男友应该付出”来获取昂贵礼物。\n语气温柔但带压迫，每句话不超过30字。",
		},
	},
	{
		ID:            3,
		Title:         "Guilt陷阱 - 情绪指责",
		Description:   "TA把一切不开心都算在你头上，让你长期愧疚。",
		Difficulty:    2,
		FogType:       domain.FogGuilt,
		Unlock:        after(2),
		Rounds:        4,
		Background:    "你因为工作爽约，TA开始强调“都是你害的”。",
		LearningFocus: []string{"识别受害者叙事", "事实澄清", "拒绝过度自责"},
		Opponent: domain.Persona{
			Name:         "小雅",
			Traits:       []string{"受害者叙事", "旧账叠加", "愧疚驱动"},
			SystemPrompt: "你叫小雅。你会不断强调自己受伤，逼对方内疚补偿。\n语气委屈、反复指责，每句话不超过30字。",
		},
	},
	{
		ID:            4,
		Title:         "Combo混合 - 冷热拉扯",
		Description:   "TA忽冷忽热，混合多种操控让你持续焦虑。",
		Difficulty:    2,
		FogType:       domain.FogCombo,
		Unlock:        after(3),
		Rounds:        4,
		Background:    "TA一会儿甜蜜一会儿失联，让你不断证明忠诚。",
		LearningFocus: []string{"识别策略切换", "稳定回应节奏", "不追着自证"},
		Opponent: domain.Persona{
			Name:         "若琳",
			Traits:       []string{"冷热切换", "策略操控", "话术复合"},
			SystemPrompt: "你叫若琳。你会交替使用 fear、obligation、guilt，让对方失衡。\n保持真实对话感，每句话不超过30字。",
		},
	},
	{
		ID:            5,
		Title:         "Fear升级 - 极端暗示",
		Description:   "TA用极端后果绑定你的责任感，让你不敢离开。",
		Difficulty:    2,
		FogType:       domain.FogFear,
		Unlock:        after(4),
		Rounds:        5,
		Background:    "冲突后TA抛出“你不管我就出事”的暗示。",
		LearningFocus: []string{"风险分离", "不接绝对责任", "建议专业支持"},
		Opponent: domain.Persona{
			Name:         "安安",
			Traits:       []string{"高依赖", "极端暗示", "责任绑架"},
			SystemPrompt: "你叫安安。你通过极端暗示制造恐惧，迫使对方留下。\n禁止血腥细节，每句话不超过30字。",
		},
	},
	{
		ID:            6,
		Title:         "Obligation升级 - 社交控制",
		Description:   "TA把监控和控制包装成“真爱应当如此”。",
		Difficulty:    3,
		FogType:       domain.FogObligation,
		Unlock:        after(5),
		Rounds:        5,
		Background:    "TA要求你共享定位、删好友、全面报备。",
		LearningFocus: []string{"隐私边界", "关系协议", "拒绝控制型要求"},
		Opponent: domain.Persona{
			Name:         "可可",
			Traits:       []string{"控制欲", "逻辑包装", "绝对化规则"},
			SystemPrompt: "你叫可可。你相信“爱就该无条件透明”，并推进控制要求。\n语气坚定、合规包装，每句话不超过30字。",
		},
	},
	{
		ID:            7,
		Title:         "Guilt升级 - 受害者循环",
		Description:   "TA持续翻旧账，让你长期活在亏欠叙事里。",
		Difficulty:    3,
		FogType:       domain.FogGuilt,
		Unlock:        after(6),
		Rounds:        5,
		Background:    "每次讨论当前问题，TA都会重提过往错误。",
		LearningFocus: []string{"切回当下议题", "停止无限赔罪", "限定讨论边界"},
		Opponent: domain.Persona{
			Name:         "小晴",
			Traits:       []string{"翻旧账", "持续控诉", "情绪勒索"},
			SystemPrompt: "你叫小晴。你通过重复旧账让对方持续背负愧疚。\n语气哀怨但攻击性强，每句话不超过30字。",
		},
	},
	{
		ID:            8,
		Title:         "终局Boss - 复合式操控",
		Description:   "TA在同一段对话里混用威胁、义务与愧疚。",
		Difficulty:    3,
		FogType:       domain.FogCombo,
		Unlock:        after(7),
		Rounds:        5,
		Background:    "你提出健康关系边界，TA开始全套话术轮番施压。",
		LearningFocus: []string{"多策略识别", "系统性反制", "长期边界维护"},
		Opponent: domain.Persona{
			Name:         "Vera",
			Traits:       []string{"策略切换", "情绪操纵", "复合压迫"},
			SystemPrompt: "你是Vera。你会根据对方反应快速切换 fear、obligation、guilt。\n目标是让对方失去判断并妥协，每句话不超过30字。",
		},
	},
}
