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

import (
	"bytes"

	_cbor "github.com/fxamacker/cbor/v2"
)

func Encode(data any) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	opts := _cbor.EncOptions{
		// Make sure that maps have ordered keys
		Sort: _cbor.SortCoreDeterministic,
	}
	em, err := opts.EncMode()
	if err != nil {
		return nil, err
	}
	enc := em.NewEncoder(buf)
	err = enc.Encode(data)
	return buf.Bytes(), err
}

// EncodeSelfDescribed encodes the specified object prefixed with the self-describe tag
func EncodeSelfDescribed(data any) ([]byte, error) {
	cborData, err := Encode(data)
	if err != nil {
		return nil, err
	}
	ret := make([]byte, 0, len(selfDescribePrefix)+len(cborData))
	ret = append(ret, selfDescribePrefix...)
	ret = append(ret, cborData...)
	return ret, nil
}
