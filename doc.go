// Package ouicomply implements the analysis core of the OuiComply MCP
// server: it forwards legal-document content to Mistral's hosted
// chat-completion and document endpoints, forces the model to answer
// through a declared function schema, and turns the (frequently
// imperfect) JSON it gets back into typed compliance findings.
//
// The package is deliberately thin on intelligence and thick on failure
// handling. Document decomposition, clause detection and risk reasoning
// all happen on the remote model; the local responsibilities are:
//
//   - DocumentCache: content-addressed upload caching so byte-identical
//     documents are pushed to the remote service exactly once per process.
//   - Retry: bounded exponential backoff with jitter around every remote
//     call. All failures are treated as retryable because the remote
//     dependency's failure modes cannot be told apart from here.
//   - ParseRepair: structural repair of malformed model JSON (trailing
//     prose after the object, unterminated string literals, markdown
//     fences) before giving up.
//   - Analyzer: the single entry point that builds the function-calling
//     request, runs it through the retry policy, repairs and normalizes
//     the response, and always hands the caller a well-formed
//     AnalysisResult. Failures surface as a degraded result with status
//     "requires_review", never as an error, because the MCP/HTTP layers
//     above have no reliable structured error channel.
//   - AnalyzeAll: concurrent fan-out over a batch of requests with
//     per-item isolation and index-aligned results.
//
// A basic single-document flow:
//
//	client := ouicomply.NewMistralClient(os.Getenv("MISTRAL_KEY"))
//	analyzer, err := ouicomply.NewAnalyzer(client, ouicomply.NewDocumentCache(client, nil))
//	if err != nil {
//		// embedded prompt templates failed to load
//	}
//	result := analyzer.Analyze(ctx, ouicomply.AnalysisRequest{
//		DocumentText: contractText,
//		Frameworks:   []string{"gdpr", "ccpa"},
//		Depth:        "standard",
//	})
//	if result.Status == ouicomply.StatusRequiresReview {
//		// analysis degraded; result.Error explains why
//	}
//
// The MCP tool surface lives in the mcpserver subpackage and the plain
// HTTP deployment wrapper in httpserver; both delegate to Analyzer and
// never see raw remote errors.
package ouicomply
