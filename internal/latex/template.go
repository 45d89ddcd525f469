package latex

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Theme names accepted by RenderSkeleton.
const (
	DefaultTheme = "DEFAULT_THEME"
	CompactTheme = "COMPACT_THEME"
)

// SkeletonData fills the reference template handed to the generator.
type SkeletonData struct {
	Name     string
	Sections []string
}

type themeSettings struct {
	FontSize string
	Margin   string
	ItemSep  string
}

var themes = map[string]themeSettings{
	DefaultTheme: {FontSize: "10pt", Margin: "2 cm", ItemSep: "0.10 cm"},
	CompactTheme: {FontSize: "10pt", Margin: "1.4 cm", ItemSep: "0.04 cm"},
}

// DefaultSections is the section order used when the caller names none.
var DefaultSections = []string{"Profile", "Experience", "Projects", "Education", "Skills"}

// RenderSkeleton renders the preamble and section scaffold the generator is
// asked to follow. Generated documents that stay close to it compile with
// the packages the renderer image carries.
func RenderSkeleton(theme string, data SkeletonData) (string, error) {
	settings, ok := themes[strings.ToUpper(strings.TrimSpace(theme))]
	if strings.TrimSpace(theme) == "" {
		settings, ok = themes[DefaultTheme], true
	}
	if !ok {
		return "", fmt.Errorf("unknown theme: %s", theme)
	}
	if len(data.Sections) == 0 {
		data.Sections = DefaultSections
	}

	funcMap := template.FuncMap{"escape": EscapeText}
	tmpl, err := template.New("skeleton").Funcs(funcMap).Parse(skeletonTemplate)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		themeSettings
		SkeletonData
	}{settings, data})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	"{", `\{`,
	"}", `\}`,
	"$", `\$`,
	"&", `\&`,
	"#", `\#`,
	"_", `\_`,
	"%", `\%`,
	"~", `\textasciitilde{}`,
	"^", `\textasciicircum{}`,
)

// EscapeText escapes plain text for use in a LaTeX text-mode argument.
func EscapeText(s string) string { return latexReplacer.Replace(s) }

const skeletonTemplate = `\documentclass[{{ .FontSize }}, letterpaper]{article}

\usepackage[ignoreheadfoot, top={{ .Margin }}, bottom={{ .Margin }}, left={{ .Margin }}, right={{ .Margin }}, footskip=1.0 cm]{geometry}
\usepackage{titlesec}
\usepackage{tabularx}
\usepackage{array}
\usepackage[dvipsnames]{xcolor}
\definecolor{primaryColor}{RGB}{0, 0, 0}
\usepackage{enumitem}
\usepackage{fontawesome5}
\usepackage{amsmath}
\usepackage[pdftitle={ {{- escape .Name }}'s CV}, pdfauthor={ {{- escape .Name -}} }, colorlinks=true, urlcolor=primaryColor]{hyperref}
\usepackage{changepage}
\usepackage{paracol}
\usepackage{needspace}
\usepackage{iftex}

\ifPDFTeX
    \pdfgentounicode=1
    \usepackage[T1]{fontenc}
    \usepackage[utf8]{inputenc}
    \usepackage{lmodern}
\fi

\usepackage{charter}

\raggedright
\pagestyle{empty}
\setcounter{secnumdepth}{0}
\setlength{\parindent}{0pt}
\setlength{\topskip}{0pt}
\pagenumbering{gobble}

\titleformat{\section}{\needspace{4\baselineskip}\bfseries\large}{}{0pt}{}[\vspace{1pt}\titlerule]
\titlespacing{\section}{-1pt}{0.3 cm}{0.2 cm}

\newenvironment{highlights}{\begin{itemize}[topsep={{ .ItemSep }},parsep={{ .ItemSep }},partopsep=0pt,itemsep=0pt,leftmargin=10pt]}{\end{itemize}}
\newenvironment{onecolentry}{\begin{adjustwidth}{0 cm + 0.00001 cm}{0 cm + 0.00001 cm}}{\end{adjustwidth}}
\newenvironment{twocolentry}[2][]{\onecolentry\def\secondColumn{#2}\setcolumnwidth{\fill, 4.5 cm}\begin{paracol}{2}}{\switchcolumn \raggedleft \secondColumn\end{paracol}\endonecolentry}
\newenvironment{header}{\setlength{\topsep}{0pt}\par\kern\topsep\centering\linespread{1.5}}{\par\kern\topsep}

\begin{document}
    \begin{header}
        \fontsize{25 pt}{25 pt}\selectfont {{ escape .Name }}

        \normalsize
        % contact line: \mbox{\faEnvelope}\ \href{mailto:...}{...}
    \end{header}
{{ range .Sections }}
    \section{ {{- escape . -}} }
        % entries: \begin{twocolentry}{<period>} \textbf{<title>}, <org> \end{twocolentry}
        % bullets: \begin{onecolentry}\begin{highlights}\item ...\end{highlights}\end{onecolentry}
{{ end }}
\end{document}
`
