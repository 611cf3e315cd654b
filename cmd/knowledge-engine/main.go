// Package main is the entry point for the knowledge engine service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	engine "github.com/kart-io/knowledge-engine/internal/engine"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/knowledge-engine/pkg/llm/ollama"
	_ "github.com/kart-io/knowledge-engine/pkg/llm/openai"
)

func main() {
	engine.NewApp().Run()
}
