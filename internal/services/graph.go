package services

// Graph is the directed traversal structure of one survey: a node per
// question, an edge per selectable answer. Nodes reference each other by
// arena index rather than by pointer, so answer chains cannot form ownership
// cycles even when the question graph itself is cyclic.
type Graph struct {
	nodes   []node
	byID    map[int64]int32
	answers map[int64]Answer
}

type node struct {
	question Question
	edges    []edge
}

type edge struct {
	answer Answer
	next   int32 // arena index of the target question, or noNode when terminal
}

const noNode int32 = -1

// BuildGraph assembles the arena from a survey's questions and answers.
// Question order is preserved: the first node is the survey's first question.
// An answer is selectable at every question sharing its answer group.
func BuildGraph(questions []Question, answers []Answer) *Graph {
	g := &Graph{
		byID:    make(map[int64]int32, len(questions)),
		answers: make(map[int64]Answer, len(answers)),
	}
	byGroup := map[int64][]int32{}
	for _, q := range questions {
		if _, ok := g.byID[q.ID]; ok {
			continue
		}
		idx := int32(len(g.nodes))
		g.byID[q.ID] = idx
		g.nodes = append(g.nodes, node{question: q})
		if q.AnswerGroupID != 0 {
			byGroup[q.AnswerGroupID] = append(byGroup[q.AnswerGroupID], idx)
		}
	}
	for _, a := range answers {
		g.answers[a.ID] = a
		if a.GroupID == 0 {
			continue
		}
		next := noNode
		if a.NextQuestionID != 0 {
			if idx, ok := g.byID[a.NextQuestionID]; ok {
				next = idx
			}
		}
		for _, idx := range byGroup[a.GroupID] {
			g.nodes[idx].edges = append(g.nodes[idx].edges, edge{answer: a, next: next})
		}
	}
	return g
}

// Len reports the number of questions in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// First returns the survey's first question, in attachment order.
func (g *Graph) First() (Question, bool) {
	if len(g.nodes) == 0 {
		return Question{}, false
	}
	return g.nodes[0].question, true
}

// Question looks a question up by id.
func (g *Graph) Question(id int64) (Question, bool) {
	idx, ok := g.byID[id]
	if !ok {
		return Question{}, false
	}
	return g.nodes[idx].question, true
}

// Answer looks an answer up by id, whether or not it is wired as an edge.
func (g *Graph) Answer(id int64) (Answer, bool) {
	a, ok := g.answers[id]
	return a, ok
}

// Resolve finds the answer a participant selected: the first answer in the
// question's group whose number matches. A miss is a lookup failure, never a
// default.
func (g *Graph) Resolve(questionID int64, numberAnswer int) (Answer, bool) {
	idx, ok := g.byID[questionID]
	if !ok {
		return Answer{}, false
	}
	for _, e := range g.nodes[idx].edges {
		if e.answer.NumberAnswer == numberAnswer {
			return e.answer, true
		}
	}
	return Answer{}, false
}

// NextQuestion follows an answer's forward edge. The second return is false
// for terminal answers and for targets outside the graph.
func (g *Graph) NextQuestion(a Answer) (Question, bool) {
	if a.NextQuestionID == 0 {
		return Question{}, false
	}
	return g.Question(a.NextQuestionID)
}

// PromptOptions lists the answers served alongside a question: the group's
// answers filtered to the ones owned by that question.
func (g *Graph) PromptOptions(questionID int64) []PromptOption {
	idx, ok := g.byID[questionID]
	if !ok {
		return nil
	}
	out := []PromptOption{}
	for _, e := range g.nodes[idx].edges {
		if e.answer.QuestionID != questionID {
			continue
		}
		out = append(out, PromptOption{ID: e.answer.ID, NumberAnswer: e.answer.NumberAnswer, Text: e.answer.Text})
	}
	return out
}

// HasCycle reports whether any answer chain can revisit a question. The store
// does not enforce acyclicity; callers use this as a diagnostic only.
func (g *Graph) HasCycle() bool {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make([]byte, len(g.nodes))
	var visit func(int32) bool
	visit = func(idx int32) bool {
		color[idx] = grey
		for _, e := range g.nodes[idx].edges {
			if e.next == noNode {
				continue
			}
			switch color[e.next] {
			case grey:
				return true
			case white:
				if visit(e.next) {
					return true
				}
			}
		}
		color[idx] = black
		return false
	}
	for i := range g.nodes {
		if color[i] == white && visit(int32(i)) {
			return true
		}
	}
	return false
}
