// Package llm provides an OpenAI-compatible HTTP client for interacting with LLM providers.
//
// # Supported Providers
//
// The client is compatible with any OpenAI-compatible API including:
//
//   - OpenAI (https://api.openai.com)
//   - OpenRouter (https://openrouter.ai/api)
//   - Ollama (http://localhost:11434), streaming via its NDJSON chat endpoint
//
// # Quick Start
//
//	client, err := llm.NewClient(
//	    llm.WithAPIKey("sk-..."),
//	    llm.WithModel("gpt-4o-mini"),
//	    llm.WithRateLimit(5, 10),
//	)
//
// # Generate (Synchronous)
//
//	resp, err := client.Generate(ctx, llm.CompletionRequest{
//	    Messages: []llm.Message{
//	        llm.SystemMessage("You are a helpful assistant."),
//	        llm.UserMessage("Hello!"),
//	    },
//	})
//	fmt.Println(resp.Text())
//
// # Stream (Asynchronous)
//
//	ch, err := client.Stream(ctx, llm.CompletionRequest{
//	    Messages: []llm.Message{llm.UserMessage("Count to 5")},
//	})
//	text, usage, err := llm.Collect(ch, func(delta string) { fmt.Print(delta) })
//
// # Embeddings
//
//	emb, err := client.Embed(ctx, llm.EmbeddingRequest{
//	    Model: "text-embedding-ada-002",
//	    Input: []string{"Hello world", "Hola mundo"},
//	})
//
// # Tools/Function Calling
//
//	resp, _ := client.Generate(ctx, llm.CompletionRequest{
//	    Messages:   []llm.Message{llm.UserMessage("What's the weather in Tokyo?")},
//	    Tools:      tools,
//	    ToolChoice: llm.ForceFunction("get_weather"),
//	})
//
// # Other endpoints
//
// Complete (legacy completions), ListModels/GetModel, Moderate, GenerateImage,
// CreateImageVariation, EditImage, Transcribe, Speech and CreateResponse
// (Responses API) share the same retry and rate-limit machinery.
//
// # With Metrics
//
//	var c llm.LLMClient = llm.NewMetricsMiddleware(client, "openai")
package llm
