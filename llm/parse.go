package llm

import "strings"

// Section is one delimited field extracted from a model response.
// Present is false when the start tag is missing or unmatched, which
// callers treat as "field absent" rather than an error.
type Section struct {
	Text    string
	Present bool
}

// StripFences removes a leading/trailing markdown code fence from s.
// The opening fence may carry a language tag. Content without fences
// passes through with only surrounding whitespace trimmed.
func StripFences(s string) string {
	stripped := strings.TrimSpace(s)

	if strings.HasPrefix(stripped, "```") {
		if idx := strings.IndexByte(stripped, '\n'); idx != -1 {
			stripped = stripped[idx+1:]
		} else {
			stripped = stripped[3:]
		}
	}

	stripped = strings.TrimRight(stripped, " \t\r\n")
	if strings.HasSuffix(stripped, "```") {
		stripped = stripped[:len(stripped)-3]
	}

	return strings.TrimSpace(stripped)
}

// ExtractSection scans text once left to right for the
// ###TAG_START### ... ###TAG_END### pair. An absent or unmatched
// start tag yields an absent Section instead of corrupted text.
func ExtractSection(text, tag string) Section {
	startTag := "###" + tag + "_START###"
	endTag := "###" + tag + "_END###"

	start := strings.Index(text, startTag)
	if start == -1 {
		return Section{}
	}
	rest := text[start+len(startTag):]
	end := strings.Index(rest, endTag)
	if end == -1 {
		return Section{}
	}
	return Section{Text: strings.TrimSpace(rest[:end]), Present: true}
}

// ParseCodeResponse extracts the delimited fields of a generation
// response. Each field is fence-stripped; missing fields come back
// empty, independent of the others.
func ParseCodeResponse(text string) CodeResponse {
	return CodeResponse{
		Code:        StripFences(ExtractSection(text, "CODE").Text),
		Data:        StripFences(ExtractSection(text, "DATA").Text),
		AssetList:   StripFences(ExtractSection(text, "ASSET_LIST").Text),
		Description: StripFences(ExtractSection(text, "DESCRIPTION").Text),
	}
}

// ParseSpecUpdate extracts the comment and specification fields of a
// specification-update response.
func ParseSpecUpdate(text string) SpecUpdate {
	return SpecUpdate{
		Comment:       StripFences(ExtractSection(text, "COMMENT").Text),
		Specification: StripFences(ExtractSection(text, "SPECIFICATION").Text),
	}
}

// ParseAnswer extracts the ANSWER section of a Q&A response.
func ParseAnswer(text string) Section {
	sec := ExtractSection(text, "ANSWER")
	if sec.Present {
		sec.Text = StripFences(sec.Text)
	}
	return sec
}
