// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtree

// LookupStatus is the outcome of a path lookup
type LookupStatus int

const (
	// LookupNotPerformed is the zero value, reported before any lookup ran
	LookupNotPerformed LookupStatus = iota
	// LookupAbsent means the tree proves that the path does not exist
	LookupAbsent
	// LookupUnknown means the path leads into a pruned subtree, so nothing can be said about it
	LookupUnknown
	// LookupFound means the path leads to a leaf
	LookupFound
	// LookupError means the path ends on an inner node, which is not a valid value
	LookupError
)

func (s LookupStatus) String() string {
	switch s {
	case LookupNotPerformed:
		return "not performed"
	case LookupAbsent:
		return "absent"
	case LookupUnknown:
		return "unknown"
	case LookupFound:
		return "found"
	case LookupError:
		return "error"
	default:
		return "invalid"
	}
}

// LookupResult is a tagged lookup outcome. Value is only set when Status is LookupFound
type LookupResult struct {
	Status LookupStatus
	Value  []byte
}

// Found reports whether the lookup found a leaf
func (r LookupResult) Found() bool {
	return r.Status == LookupFound
}

func (r LookupResult) String() string {
	if r.Status == LookupFound {
		return "found(" + Label(r.Value).String() + ")"
	}
	return r.Status.String()
}

// labelStatus is the outcome of searching for one label among the children of a node
type labelStatus int

const (
	labelAbsent labelStatus = iota
	labelUnknown
	labelFound
	// labelLess means every label in the subtree is greater than the one searched for
	labelLess
	// labelGreater means every label in the subtree is less than the one searched for
	labelGreater
)

// LookupPath looks up the specified path starting at node n
func LookupPath(n Node, path Path) LookupResult {
	for len(path) > 0 {
		status, sub := findLabel(n, path[0])
		switch status {
		case labelFound:
			n = sub
			path = path[1:]
		case labelUnknown:
			return LookupResult{Status: LookupUnknown}
		default:
			return LookupResult{Status: LookupAbsent}
		}
	}
	switch v := n.(type) {
	case Leaf:
		return LookupResult{Status: LookupFound, Value: v.Value}
	case Empty:
		return LookupResult{Status: LookupAbsent}
	case Pruned:
		return LookupResult{Status: LookupUnknown}
	default:
		return LookupResult{Status: LookupError}
	}
}

// findLabel searches the labeled children of n. Labels within a fork are sorted, so a label
// that falls strictly between two known neighbours is provably absent, while a gap next to a
// pruned subtree is unknown
func findLabel(n Node, label Label) (labelStatus, Node) {
	switch v := n.(type) {
	case Labeled:
		cmp := compareLabels(label, v.Label)
		switch {
		case cmp == 0:
			return labelFound, v.Tree
		case cmp < 0:
			return labelLess, nil
		default:
			return labelGreater, nil
		}
	case Fork:
		leftStatus, leftNode := findLabel(v.Left, label)
		switch leftStatus {
		case labelGreater:
			rightStatus, rightNode := findLabel(v.Right, label)
			if rightStatus == labelLess {
				return labelAbsent, nil
			}
			return rightStatus, rightNode
		case labelUnknown:
			rightStatus, rightNode := findLabel(v.Right, label)
			if rightStatus == labelLess {
				return labelUnknown, nil
			}
			return rightStatus, rightNode
		default:
			return leftStatus, leftNode
		}
	case Pruned:
		return labelUnknown, nil
	default:
		return labelAbsent, nil
	}
}
