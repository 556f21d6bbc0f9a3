// internal/services/pixar_rules.go
package services

import (
	"strings"

	"github.com/Corphon/StoryForge/internal/models"
)

// minSelectedRules 命中规则少于这个数时退回完整规则表
const minSelectedRules = 3

var pixarRules = []models.PixarRule{
	{1, "Admire the trying", "You admire a character for trying more than for their successes."},
	{2, "Audience over writer", "Keep in mind what's interesting to you as an audience, not what's fun to do as a writer."},
	{3, "Theme emerges late", "Trying for theme is important, but you won't see what the story is actually about until you're at the end of it. Now rewrite."},
	{4, "Story spine", "Once upon a time there was ___. Every day, ___. One day ___. Because of that, ___. Because of that, ___. Until finally ___."},
	{5, "Simplify and focus", "Simplify. Focus. Combine characters. Hop over detours. You'll feel like you're losing valuable stuff but it sets you free."},
	{6, "Challenge the comfort zone", "What is your character good at, comfortable with? Throw the polar opposite at them. Challenge them. How do they deal?"},
	{7, "Ending first", "Come up with your ending before you figure out your middle. Seriously. Endings are hard, get yours working up front."},
	{8, "Finish and let go", "Finish your story, let go even if it's not perfect. In an ideal world you have both, but move on. Do better next time."},
	{9, "List what wouldn't happen", "When you're stuck, make a list of what wouldn't happen next. Lots of times the material to get you unstuck will show up."},
	{10, "Pull stories apart", "Pull apart the stories you like. What you like in them is a part of you; you've got to recognize it before you can use it."},
	{11, "Put it on paper", "Putting it on paper lets you start fixing it. If it stays in your head, a perfect idea, you'll never share it with anyone."},
	{12, "Discard the obvious", "Discount the first thing that comes to mind. And the second, third, fourth, fifth. Get the obvious out of the way. Surprise yourself."},
	{13, "Opinionated characters", "Give your characters opinions. Passive or malleable might seem likable to you as you write, but it's poison to the audience."},
	{14, "Why this story", "Why must you tell this story? What's the belief burning within you that your story feeds off of? That's the heart of it."},
	{15, "Feel it honestly", "If you were your character, in this situation, how would you feel? Honesty lends credibility to unbelievable situations."},
	{16, "Raise the stakes", "What are the stakes? Give us reason to root for the character. What happens if they don't succeed? Stack the odds against."},
	{17, "Nothing is wasted", "No work is ever wasted. If it's not working, let go and move on. It'll come back around to be useful later."},
	{18, "Best versus fussing", "You have to know yourself: the difference between doing your best and fussing. Story is testing, not refining."},
	{19, "Coincidence rule", "Coincidences to get characters into trouble are great; coincidences to get them out of it are cheating."},
	{20, "Rearrange what you dislike", "Take the building blocks of a movie you dislike. How would you rearrange them into what you do like?"},
	{21, "Identify with your characters", "You have to identify with your situation and characters. You can't just write 'cool'. What would make you act that way?"},
	{22, "Essence of the story", "What's the essence of your story? Most economical telling of it? If you know that, you can build out from there."},
}

// ruleCategory 一组关键词对应的规则（按 1 开始的编号）
type ruleCategory struct {
	name     string
	keywords []string
	rules    []int
}

// 声明顺序就是追加顺序
var ruleCategories = []ruleCategory{
	{
		name:     "character development",
		keywords: []string{"character", "protagonist", "hero", "villain", "motivation"},
		rules:    []int{1, 6, 13, 15, 21},
	},
	{
		name:     "structure",
		keywords: []string{"structure", "plot", "outline", "ending", "middle", "pacing"},
		rules:    []int{4, 5, 7, 19, 22},
	},
	{
		name:     "stakes",
		keywords: []string{"stakes", "conflict", "tension", "obstacle"},
		rules:    []int{6, 16, 19},
	},
	{
		name:     "writer's block",
		keywords: []string{"stuck", "block", "can't", "no idea", "blank"},
		rules:    []int{8, 9, 11, 12, 17},
	},
	{
		name:     "theme",
		keywords: []string{"theme", "meaning", "message", "why"},
		rules:    []int{3, 14, 22},
	},
}

// PixarRules 完整的 22 条规则，按编号排列。返回副本
func PixarRules() []models.PixarRule {
	out := make([]models.PixarRule, len(pixarRules))
	copy(out, pixarRules)
	return out
}

// SelectRules 按关键词（大小写不敏感的子串匹配）挑选规则。每个命中的类别按声明顺序
// 把自己的规则追加进结果，多个类别共享的规则会重复出现。
// 结果少于 3 条时返回完整规则表
func SelectRules(situation string, catalog []models.PixarRule) []models.PixarRule {
	text := strings.ToLower(situation)

	var selected []models.PixarRule
	for _, cat := range ruleCategories {
		if !containsAny(text, cat.keywords) {
			continue
		}
		for _, n := range cat.rules {
			if n >= 1 && n <= len(catalog) {
				selected = append(selected, catalog[n-1])
			}
		}
	}

	if len(selected) < minSelectedRules {
		out := make([]models.PixarRule, len(catalog))
		copy(out, catalog)
		return out
	}
	return selected
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// situationText 选规则时使用的情境文本：概念加上自定义约束
func situationText(req *models.StoryGenerationRequest) string {
	if len(req.CustomConstraints) == 0 {
		return req.Concept
	}
	return req.Concept + "\n" + strings.Join(req.CustomConstraints, "\n")
}
