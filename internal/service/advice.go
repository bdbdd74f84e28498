package service

// 快速建议话题
const (
	TopicStress   = "stress"
	TopicSleep    = "sleep"
	TopicExercise = "exercise"
)

// topicAdvice 是按话题预置的建议文案，不经过 AI 后端。
var topicAdvice = map[string][]string{
	TopicStress: {
		"交接班后花五分钟做深呼吸练习，吸气四秒、屏息四秒、呼气四秒，能快速降低紧张感。",
		"把当天最困扰的一件事写下来，写完就合上。纸面化可以阻止它在脑子里反复回放。",
		"连续高压的日子里，主动和信任的同事聊十分钟，倾诉本身就是有效的减压方式。",
	},
	TopicSleep: {
		"下夜班回家路上戴墨镜减少光照，到家后拉好遮光帘，帮助身体切换到睡眠状态。",
		"睡前一小时不看手机屏幕，改为热水澡或拉伸，让入睡过程更顺滑。",
		"无论几点下班，固定同样的睡前流程，规律比时长更能改善睡眠质量。",
	},
	TopicExercise: {
		"久站后的下肢酸胀，用靠墙抬腿十分钟就能明显缓解。",
		"每周三次、每次二十分钟的快走就足以改善心肺状态，不必追求高强度。",
		"班间休息时做肩颈环绕和体侧伸展，可以抵消长时间低头操作的劳损。",
	},
}

// AdviceForTopic 返回指定话题的建议文案；未知话题回退到压力管理。
func AdviceForTopic(topic string) []string {
	if advice, ok := topicAdvice[topic]; ok {
		return advice
	}
	return topicAdvice[TopicStress]
}
