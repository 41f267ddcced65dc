package vector

// Category groups example sentences for the classification demo.
type Category struct {
	Name  string
	Texts []string
}

var Categories = []Category{
	{Name: "technology", Texts: []string{
		"Artificial intelligence is transforming industries",
		"Machine learning algorithms are becoming more sophisticated",
		"The latest smartphone features advanced AI capabilities",
	}},
	{Name: "sports", Texts: []string{
		"The team won the championship game",
		"Athletes train hard to improve performance",
		"The match was intense and exciting",
	}},
	{Name: "food", Texts: []string{
		"This restaurant serves delicious Italian cuisine",
		"The chef prepared a gourmet meal",
		"Fresh ingredients make all the difference",
	}},
}

const SearchQuery = "What is machine learning?"

var SearchCorpus = []string{
	"Machine learning is a subset of artificial intelligence.",
	"The weather forecast predicts rain tomorrow.",
	"Deep learning uses neural networks with multiple layers.",
	"Cooking requires patience and skill.",
	"AI systems can learn from data without explicit programming.",
}

var SimilarityPair = [2]string{
	"The quick brown fox jumps over the lazy dog.",
	"A fast auburn fox leaps across a sleepy canine.",
}
