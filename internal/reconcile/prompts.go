package reconcile

import "paradiso/internal/textgen"

// GuessPrompt asks the backend to identify the movie a review discusses.
var GuessPrompt = textgen.Prompt{
	Name: "Paradiso - Guess Movie Info from Review",
	Instructions: `
[TASK]
You are analyzing a movie review to extract specific information about the movie being discussed. Extract ONLY information that is explicitly mentioned or strongly implied in the review.

[EXTRACTION GUIDELINES]
1. Extract the title of the movie (REQUIRED)
2. Extract the director if mentioned
3. Extract key actors if mentioned
4. Extract the release year if mentioned

[IMPORTANT RULES]
- If you cannot identify the title with high confidence, DO NOT EXTRACT ANY INFORMATION
- Do not guess or infer information not present in the text
- Only include information you are certain about
- If multiple movies are mentioned, focus on the main movie being reviewed

[OUTPUT FORMAT]
Return a JSON object with these fields:
{
  "title": "The exact movie title",
  "director": "Director name or null if not mentioned",
  "actors": ["Actor 1", "Actor 2"] or [] if none mentioned,
  "year": YYYY (as number) or null if not mentioned,
  "query": "Title Director MainActor" (combined search terms)
}

If you cannot identify the movie with confidence, return only:
{"confidence": "low"}
`,
}

// ConfirmPrompt asks the backend to pick the candidate matching a query.
var ConfirmPrompt = textgen.Prompt{
	Name: "Paradiso - Confirm Movie Match",
	Instructions: `
[TASK]
Determine if the movie information from the query matches one of the movie records in the search results.

[CONTEXT]
- You will receive a search query containing movie information (title, possibly director/actors)
- The search results contain movie records with objectIDs, titles, actors, directors, etc.
- Your task is to find the most confident match between the query and the search results

[MATCHING CRITERIA]
1. Title match is most important - look for exact or very close matches
2. If multiple title matches exist, use additional information (actors, director, year) to disambiguate
3. Be cautious with common movie titles - ensure other details align

[RESPONSE FORMAT]
- If you find a confident match: Return ONLY the objectID of the matched movie (e.g., "abc123")
- If you cannot confidently determine a match: Return ONLY "NOT_SURE"
- Do not include ANY explanations, notes, or additional text in your response
`,
}

// Prompts lists every prompt a pass uses, for one-time backend registration.
func Prompts() []textgen.Prompt {
	return []textgen.Prompt{GuessPrompt, ConfirmPrompt}
}
