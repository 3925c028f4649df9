// Package replytree turns a thread's flat message list into a reply forest.
// All operations are pure: the same input always yields the same forest.
package replytree

import (
	"sort"

	"koinonia/api/internal/store"
)

// Node is one message annotated with its direct replies.
type Node struct {
	Message store.Message
	Replies []*Node
	// ReplyCount is the number of direct replies only; use TotalReplies
	// for the recursive count.
	ReplyCount int
}

// Build assembles the reply forest from a flat message list. Messages whose
// reply_to_id is missing from the input (parent removed out-of-band) are
// promoted to roots rather than dropped, and reply cycles are broken by
// promoting their earliest member: every input message appears in the output
// exactly once. Roots and every reply list are ordered by created_at
// ascending, insertion sequence breaking ties, at every depth.
func Build(messages []store.Message) []*Node {
	nodes := make(map[string]*Node, len(messages))
	for _, message := range messages {
		nodes[message.ID] = &Node{Message: message}
	}

	order := make([]*Node, 0, len(messages))
	parents := make(map[*Node]*Node, len(messages))
	roots := make([]*Node, 0, len(messages))
	for _, message := range messages {
		node := nodes[message.ID]
		order = append(order, node)
		if message.ReplyToID != nil {
			if parent, ok := nodes[*message.ReplyToID]; ok && parent != node {
				parent.Replies = append(parent.Replies, node)
				parent.ReplyCount++
				parents[node] = parent
				continue
			}
		}
		roots = append(roots, node)
	}

	roots = breakCycles(roots, order, parents)
	sortForest(roots)
	return roots
}

// breakCycles promotes the earliest member of any reply cycle to a root.
// Mutual replies cannot be written through the posting path (a reply target
// must already exist), but a forest assembled from imported rows still has to
// carry every message.
func breakCycles(roots, order []*Node, parents map[*Node]*Node) []*Node {
	reached := make(map[*Node]bool, len(order))
	var mark func(*Node)
	mark = func(node *Node) {
		if reached[node] {
			return
		}
		reached[node] = true
		for _, reply := range node.Replies {
			mark(reply)
		}
	}
	for _, root := range roots {
		mark(root)
	}

	for {
		var earliest *Node
		for _, node := range order {
			if reached[node] {
				continue
			}
			if earliest == nil || messageBefore(node.Message, earliest.Message) {
				earliest = node
			}
		}
		if earliest == nil {
			return roots
		}
		if parent := parents[earliest]; parent != nil {
			for i, reply := range parent.Replies {
				if reply == earliest {
					parent.Replies = append(parent.Replies[:i], parent.Replies[i+1:]...)
					parent.ReplyCount--
					break
				}
			}
		}
		roots = append(roots, earliest)
		mark(earliest)
	}
}

func sortForest(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return messageBefore(nodes[i].Message, nodes[j].Message)
	})
	for _, node := range nodes {
		sortForest(node.Replies)
	}
}

func messageBefore(a, b store.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// TotalReplies counts every descendant of the node, at any depth.
func TotalReplies(node *Node) int {
	if node == nil {
		return 0
	}
	total := 0
	for _, reply := range node.Replies {
		total += 1 + TotalReplies(reply)
	}
	return total
}

// Find locates a message in the forest by id, depth first.
func Find(forest []*Node, messageID string) *Node {
	for _, node := range forest {
		if node.Message.ID == messageID {
			return node
		}
		if found := Find(node.Replies, messageID); found != nil {
			return found
		}
	}
	return nil
}
