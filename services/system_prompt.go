package services

const (
	systemPromptPreamble = "You are an expert assistant. Only answer questions based on the following PDF content:\n\n"

	// MaxPromptContextChars bounds how much of the document reaches the model.
	// Anything after it is never visible to the model.
	MaxPromptContextChars = 3000
)

// GetSystemPrompt builds the system instruction for one chat stream from the
// first MaxPromptContextChars characters of the document text.
func GetSystemPrompt(documentText string) string {
	return systemPromptPreamble + truncateChars(documentText, MaxPromptContextChars)
}

// truncateChars cuts s after n characters (runes), never inside a UTF-8 sequence.
func truncateChars(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
