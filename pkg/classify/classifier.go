package classify

import "strings"

// Category is a task category used to select a dispatch pool.
type Category string

// Task categories known to the dispatcher.
const (
	CategoryCoding     Category = "coding"
	CategoryResearch   Category = "research"
	CategoryWriting    Category = "writing"
	CategoryFast       Category = "fast"
	CategoryThroughput Category = "throughput"
	CategoryChinese    Category = "chinese"
	CategoryMultimodal Category = "multimodal"
	CategoryDefault    Category = "default"
)

// Categories lists all classifiable categories (excluding CategoryDefault,
// which is the no-match fallback).
var Categories = []Category{
	CategoryCoding,
	CategoryResearch,
	CategoryWriting,
	CategoryFast,
	CategoryThroughput,
	CategoryChinese,
	CategoryMultimodal,
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	if c == CategoryDefault {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Keyword is a weighted classifier phrase. Phrases are matched as
// case-insensitive substrings of the task text.
type Keyword struct {
	Phrase string
	Weight int
}

// tieOrder breaks score ties. Earlier wins.
var tieOrder = []Category{
	CategoryCoding,
	CategoryResearch,
	CategoryWriting,
	CategoryMultimodal,
	CategoryFast,
	CategoryThroughput,
	CategoryChinese,
}

// builtinKeywords is the static category keyword table. English and Chinese
// phrases carry the same weights so classification does not depend on the
// input language.
var builtinKeywords = map[Category][]Keyword{
	CategoryCoding: {
		{Phrase: "code", Weight: 2},
		{Phrase: "function", Weight: 2},
		{Phrase: "algorithm", Weight: 2},
		{Phrase: "implement", Weight: 2},
		{Phrase: "refactor", Weight: 2},
		{Phrase: "debug", Weight: 2},
		{Phrase: "compile", Weight: 2},
		{Phrase: "api", Weight: 1},
		{Phrase: "script", Weight: 1},
		{Phrase: "bug", Weight: 1},
		{Phrase: "class", Weight: 1},
		{Phrase: "module", Weight: 1},
		{Phrase: "frontend", Weight: 1},
		{Phrase: "backend", Weight: 1},
		{Phrase: "编程", Weight: 2},
		{Phrase: "写代码", Weight: 2},
		{Phrase: "写一个", Weight: 2},
		{Phrase: "写个", Weight: 2},
		{Phrase: "写程序", Weight: 2},
		{Phrase: "算法", Weight: 2},
		{Phrase: "函数", Weight: 2},
		{Phrase: "排序", Weight: 2},
		{Phrase: "调试", Weight: 2},
		{Phrase: "报错", Weight: 2},
		{Phrase: "代码", Weight: 1},
		{Phrase: "程序", Weight: 1},
		{Phrase: "开发", Weight: 1},
		{Phrase: "脚本", Weight: 1},
		{Phrase: "接口", Weight: 1},
	},
	CategoryResearch: {
		{Phrase: "research", Weight: 2},
		{Phrase: "search", Weight: 2},
		{Phrase: "look up", Weight: 2},
		{Phrase: "compare", Weight: 2},
		{Phrase: "versus", Weight: 1},
		{Phrase: "pros and cons", Weight: 2},
		{Phrase: "latest", Weight: 1},
		{Phrase: "find out", Weight: 1},
		{Phrase: "investigate", Weight: 2},
		{Phrase: "搜索", Weight: 2},
		{Phrase: "查找", Weight: 2},
		{Phrase: "研究", Weight: 2},
		{Phrase: "对比", Weight: 2},
		{Phrase: "比较", Weight: 2},
		{Phrase: "区别", Weight: 1},
		{Phrase: "哪个好", Weight: 2},
	},
	CategoryWriting: {
		{Phrase: "write an article", Weight: 3},
		{Phrase: "write a doc", Weight: 3},
		{Phrase: "write a blog", Weight: 3},
		{Phrase: "write a report", Weight: 3},
		{Phrase: "readme", Weight: 2},
		{Phrase: "summarize", Weight: 2},
		{Phrase: "rewrite", Weight: 2},
		{Phrase: "draft", Weight: 2},
		{Phrase: "polish", Weight: 2},
		{Phrase: "essay", Weight: 2},
		{Phrase: "proofread", Weight: 2},
		{Phrase: "写文章", Weight: 3},
		{Phrase: "写文档", Weight: 3},
		{Phrase: "写博客", Weight: 3},
		{Phrase: "写报告", Weight: 3},
		{Phrase: "写故事", Weight: 2},
		{Phrase: "总结", Weight: 2},
		{Phrase: "改写", Weight: 2},
		{Phrase: "润色", Weight: 2},
	},
	CategoryFast: {
		{Phrase: "quick", Weight: 2},
		{Phrase: "quickly", Weight: 2},
		{Phrase: "brief", Weight: 2},
		{Phrase: "short answer", Weight: 2},
		{Phrase: "one line", Weight: 2},
		{Phrase: "one liner", Weight: 2},
		{Phrase: "simple question", Weight: 2},
		{Phrase: "tl;dr", Weight: 3},
		{Phrase: "快速", Weight: 2},
		{Phrase: "简单", Weight: 1},
		{Phrase: "简短", Weight: 2},
		{Phrase: "一句话", Weight: 2},
		{Phrase: "马上", Weight: 1},
	},
	CategoryThroughput: {
		{Phrase: "batch", Weight: 2},
		{Phrase: "bulk", Weight: 2},
		{Phrase: "all files", Weight: 2},
		{Phrase: "every file", Weight: 2},
		{Phrase: "in parallel", Weight: 2},
		{Phrase: "large dataset", Weight: 2},
		{Phrase: "thousands", Weight: 1},
		{Phrase: "批量", Weight: 2},
		{Phrase: "大量", Weight: 2},
		{Phrase: "所有文件", Weight: 2},
		{Phrase: "高并发", Weight: 2},
	},
	CategoryChinese: {
		{Phrase: "translate to chinese", Weight: 3},
		{Phrase: "in chinese", Weight: 2},
		{Phrase: "翻译成中文", Weight: 3},
		{Phrase: "用中文", Weight: 2},
		{Phrase: "中文回答", Weight: 3},
		{Phrase: "成语", Weight: 2},
		{Phrase: "文言文", Weight: 3},
		{Phrase: "古诗", Weight: 2},
	},
	CategoryMultimodal: {
		{Phrase: "image", Weight: 2},
		{Phrase: "picture", Weight: 2},
		{Phrase: "photo", Weight: 2},
		{Phrase: "screenshot", Weight: 2},
		{Phrase: "diagram", Weight: 2},
		{Phrase: "video", Weight: 2},
		{Phrase: "audio", Weight: 2},
		{Phrase: "ocr", Weight: 2},
		{Phrase: "图片", Weight: 2},
		{Phrase: "截图", Weight: 2},
		{Phrase: "照片", Weight: 2},
		{Phrase: "视频", Weight: 2},
		{Phrase: "识别图", Weight: 2},
	},
}

// Classifier classifies task text into a category.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	keywords map[Category][]Keyword
}

// New returns a classifier using the built-in keyword tables.
func New() *Classifier {
	return NewWithKeywords(nil)
}

// NewWithKeywords returns a classifier with extra keywords merged into the
// built-in tables. Keys of extra must be valid category names; unknown
// categories are ignored.
func NewWithKeywords(extra map[Category][]Keyword) *Classifier {
	kw := make(map[Category][]Keyword, len(builtinKeywords))
	for cat, list := range builtinKeywords {
		kw[cat] = list
	}
	for cat, list := range extra {
		if !cat.IsValid() || cat == CategoryDefault {
			continue
		}
		merged := make([]Keyword, 0, len(kw[cat])+len(list))
		merged = append(merged, kw[cat]...)
		merged = append(merged, list...)
		kw[cat] = merged
	}
	return &Classifier{keywords: kw}
}

// Classify maps task text to a category. Empty input and input matching no
// keyword both yield CategoryDefault.
func (c *Classifier) Classify(text string) Category {
	if strings.TrimSpace(text) == "" {
		return CategoryDefault
	}

	lower := strings.ToLower(text)

	scores := make(map[Category]int, len(c.keywords))
	for cat, keywords := range c.keywords {
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw.Phrase)) {
				scores[cat] += kw.Weight
			}
		}
	}

	best := CategoryDefault
	bestScore := 0
	for _, cat := range tieOrder {
		if scores[cat] > bestScore {
			best = cat
			bestScore = scores[cat]
		}
	}
	return best
}
