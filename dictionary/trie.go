package dictionary

// trieNode holds one rune of some key. Terminal nodes carry the key's value.
type trieNode struct {
	children map[rune]*trieNode
	terminal bool
	key      string
	value    string
	length   int // key length in runes
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

func (n *trieNode) insert(key string, value string) {
	node := n
	length := 0
	for _, r := range key {
		child, ok := node.children[r]
		if !ok {
			child = newTrieNode()
			node.children[r] = child
		}
		node = child
		length++
	}
	node.terminal = true
	node.key = key
	node.value = value
	node.length = length
}

// Match is a key found as a substring of some text.
type Match struct {
	Key    string
	Value  string
	Length int // in runes
	Offset int // rune offset of the first occurrence found
}

// walk calls fn for every key that starts at text[start:] and is at least
// minLength runes long. The walk stops early when fn returns false.
func (n *trieNode) walk(text []rune, start, minLength int, fn func(Match) bool) bool {
	node := n
	for i := start; i < len(text); i++ {
		child, ok := node.children[text[i]]
		if !ok {
			return true
		}
		node = child
		if node.terminal && node.length >= minLength {
			if !fn(Match{Key: node.key, Value: node.value, Length: node.length, Offset: start}) {
				return false
			}
		}
	}
	return true
}
