package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdviceForTopic(t *testing.T) {
	for _, topic := range []string{TopicStress, TopicSleep, TopicExercise} {
		advice := AdviceForTopic(topic)
		assert.NotEmpty(t, advice, "topic=%s", topic)
	}

	// 话题之间的文案不同
	assert.NotEqual(t, AdviceForTopic(TopicStress), AdviceForTopic(TopicSleep))
}

func TestAdviceForTopicFallback(t *testing.T) {
	// 未知话题与空话题都回退到压力管理
	assert.Equal(t, AdviceForTopic(TopicStress), AdviceForTopic("diet"))
	assert.Equal(t, AdviceForTopic(TopicStress), AdviceForTopic(""))
}
