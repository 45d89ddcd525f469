package llm

import (
	"fmt"

	"resumetex/internal/llm/providers"
)

const generateSystem = `You write resumes as complete LaTeX documents.
Return one document between a ` + "```latex" + ` fence and nothing else.
Follow the reference preamble and section commands exactly; do not add packages.
Escape the characters & %% $ # _ { } in text. Do not use markdown syntax.
The rendered document must fit on %d pages.`

const compressSystem = `You shorten LaTeX resumes.
Return the complete revised document between a ` + "```latex" + ` fence and nothing else.
Keep the preamble, the section order and every command definition unchanged.
Only shorten content: merge or drop the weakest bullets, tighten wording, trim older roles.`

// BuildGenerateRequest asks for a tailored document following skeleton.
func BuildGenerateRequest(jobDescription, masterResume, skeleton string, pageBudget int) providers.Request {
	user := fmt.Sprintf(`Tailor the master resume to the job description below.

REFERENCE DOCUMENT:
%s

JOB DESCRIPTION:
%s

MASTER RESUME:
%s`, skeleton, jobDescription, masterResume)

	return providers.Request{
		System: fmt.Sprintf(generateSystem, pageBudget),
		User:   user,
	}
}

// BuildCompressRequest asks for the same document cut down to the budget.
func BuildCompressRequest(document string, pageCount, pageBudget int) providers.Request {
	user := fmt.Sprintf(`This document renders to %d pages; it must render to at most %d.

%s`, pageCount, pageBudget, document)

	return providers.Request{
		System: compressSystem,
		User:   user,
	}
}
