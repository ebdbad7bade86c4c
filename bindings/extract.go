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

package bindings

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrNoInterface is returned by ExtractInterface when the source contains no Candid directives
var ErrNoInterface = errors.New("no candid directives found")

// ExtractInterface rebuilds the Candid text of generated bindings from their //candid: directive
// comments. For bindings generated from a checked program, the result matches candid.PrettyProg for
// that program
func ExtractInterface(src []byte) (string, error) {
	var types, methods []string
	var serviceHeader string
	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), len(src)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, typeDirectivePrefix):
			types = append(types, "type "+strings.TrimPrefix(line, typeDirectivePrefix))
		case strings.HasPrefix(line, serviceDirectivePrefix):
			if serviceHeader != "" {
				return "", errors.New("multiple service directives")
			}
			serviceHeader = strings.TrimPrefix(line, serviceDirectivePrefix)
		case strings.HasPrefix(line, methodDirectivePrefix):
			methods = append(methods, strings.TrimPrefix(line, methodDirectivePrefix))
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	if len(types) == 0 && serviceHeader == "" {
		return "", ErrNoInterface
	}
	if serviceHeader == "" && len(methods) > 0 {
		return "", errors.New("method directives without a service directive")
	}
	var sb strings.Builder
	for _, t := range types {
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	if serviceHeader != "" {
		sb.WriteString(serviceHeader)
		sb.WriteString(" {\n")
		for _, method := range methods {
			sb.WriteString("  ")
			sb.WriteString(method)
			sb.WriteByte('\n')
		}
		sb.WriteString("}\n")
	}
	return sb.String(), nil
}
