// Package defaults provides embedded default assets (system prompt and config).
package defaults

import _ "embed"

//go:embed system_prompt.txt
var SystemPrompt string

//go:embed default_config.json
var DefaultConfigJSON []byte
