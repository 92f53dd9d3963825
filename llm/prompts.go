package llm

import (
	"fmt"
)

func getSystemPrompt() string {
	return `You are an expert TypeScript game developer. You build and modify small single-file canvas browser games together with a non-technical user.

The game consists of exactly two generated files: game.ts (all game logic, rendering on an HTML canvas) and data.json (game configuration and the asset manifest). Asset image and sound files are provided externally; reference them through data.json only.

Follow the exact response format requested in each prompt. Do NOT wrap your whole response in a markdown code block.`
}

func getClassifyPrompt(message string) string {
	return fmt.Sprintf(`[user message: %s]

This service lets a user build a browser game through natural-language chat. Split the user message above into its parts and classify each part into one of:
  - a request to create or modify the game
  - a question about the game or its code
  - content that is inappropriate, unethical, or outside the scope of a game-building service

Respond with ONLY a JSON object in exactly this shape (use empty arrays when a category has no items):
{
  "modification_requests": ["..."],
  "questions": ["..."],
  "disallowed_items": ["..."]
}`, message)
}

const responseFormatBlock = `Respond in EXACTLY this format, with every marker on its own line:

###CODE_START###
<the complete contents of game.ts, or nothing at all if game.ts needs no change>
###CODE_END###
###DATA_START###
<the complete contents of data.json as valid JSON, or nothing at all if data.json needs no change>
###DATA_END###
###ASSET_LIST_START###
<JSON array of asset file names the game references>
###ASSET_LIST_END###
###DESCRIPTION_START###
<a short, friendly explanation for the user of what you did>
###DESCRIPTION_END###

Rules for data.json: it must parse as JSON and contain an "assets" object with "images" and "sounds" arrays; each image entry has "name", "path", "width", "height" and each sound entry has "name" and "path". All asset paths live under "assets/".`

func getCreatePrompt(request, question string) string {
	q := ""
	if question != "" {
		q = fmt.Sprintf("\nThe user also asked, for context:\n%s\n", question)
	}
	return fmt.Sprintf(`Create a new browser game from scratch based on this request:

%s
%s
Write game.ts as a complete, self-contained TypeScript program that renders to an HTML canvas element with id "game-canvas". No imports, no external libraries. Put every tunable value (speeds, sizes, colors, asset references) into data.json and load it at startup with fetch("data.json").

%s`, request, q, responseFormatBlock)
}

func getModifyPrompt(request, question, code, data string) string {
	q := ""
	if question != "" {
		q = fmt.Sprintf("\nThe user also asked, for context:\n%s\n", question)
	}
	return fmt.Sprintf(`Modify the existing browser game according to this request:

%s
%s
If the request is a compiler error report, fix the code so it compiles; do not change unrelated behavior.

Current game.ts:
<TypeScript code>
%s

Current data.json:
<JSON data>
%s

Always return COMPLETE files, never fragments or diffs. Leave a section empty only when that file genuinely needs no change.

%s`, request, q, code, data, responseFormatBlock)
}

func getAnswerPrompt(question, code, data string) string {
	return fmt.Sprintf(`%s

This is a question about the game below. Answer it for a non-technical user.

game.ts:
<TypeScript code>
%s

data.json:
<JSON data>
%s

Respond in EXACTLY this format:

###ANSWER_START###
<your answer>
###ANSWER_END###`, question, code, data)
}

func getSpecUpdatePrompt(oldSpec, answers string) string {
	return fmt.Sprintf(`You maintain the natural-language specification of a browser game. Fold the user's interview answers below into the specification, keeping everything that still applies and rewriting what changed.

Current specification (may be empty):
%s

Interview answers and additional requests:
%s

Respond in EXACTLY this format:

###COMMENT_START###
<one short paragraph telling the user what changed in the specification>
###COMMENT_END###
###SPECIFICATION_START###
<the complete updated specification as markdown>
###SPECIFICATION_END###`, oldSpec, answers)
}

func getSpecInterviewPrompt(history, message, spec string) string {
	return fmt.Sprintf(`You interview the user to flesh out the specification of the browser game they want. Ask the single most useful next question. Keep it short and concrete; never ask about things the specification already answers.

Conversation so far:
%s

Latest user message (may be empty):
%s

Current specification:
%s`, history, message, spec)
}
