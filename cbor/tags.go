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

package cbor

import "bytes"

const (
	// Useful tag numbers
	CborTagSelfDescribe = 55799
)

// selfDescribePrefix is the encoded form of tag 55799 (0xd9d9f7)
var selfDescribePrefix = []byte{0xd9, 0xd9, 0xf7}

// HasSelfDescribeTag reports whether the CBOR data starts with the self-describe tag
func HasSelfDescribeTag(cborData []byte) bool {
	return bytes.HasPrefix(cborData, selfDescribePrefix)
}
