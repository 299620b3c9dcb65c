package genai

import (
	"fmt"
	"strings"
)

const storyPromptTemplate = `You are a masterful storyteller, specializing in weaving fun, engaging, and imaginative tales about a world teeming with lots of tiny cats.
Your mission is to craft stories that are packed with all the important details, clear enough for children and engaging enough for everyone.
Each story must be a complete, understandable adventure within its short form, focusing on a group of tiny cats.

Story style:
- Short, conversational, casual sentences.
- An upbeat and whimsical vibe throughout.
- A narrative that is easy for children to follow.

Important instructions:
1. Write the story in %s.
2. Begin the story immediately without any introduction, preamble, or commentary.
3. Respond with JSON only: {"story": "<the full story>"}.

The user will provide a starting idea. Expand on it to create a story about many tiny cats.

User's story idea: %s`

const illustrationPromptTemplate = `Generate a cute and minimal black and white line drawing to illustrate the following sentence about tiny cats: "%s"

Image requirements:
- Content: the scene described in the sentence, focusing on visibly tiny cats, in groups or interacting when the sentence allows.
- Style: simple, clean black ink line drawing reminiscent of classic children's storybook illustrations.
- Background: plain white.
- Color: strictly black and white.
- No text in the image: no words, captions, or labels. Use the separate text field of the response for any explanation.
- Detail: no complex backgrounds or excessive detail.`

// StoryPrompt renders the narrative prompt for a language display name.
func StoryPrompt(prompt, languageName string) string {
	return fmt.Sprintf(storyPromptTemplate, languageName, strings.TrimSpace(prompt))
}

// IllustrationPrompt renders the image prompt for one sentence.
func IllustrationPrompt(sentence string) string {
	return fmt.Sprintf(illustrationPromptTemplate, strings.TrimSpace(sentence))
}
