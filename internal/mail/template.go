package mail

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"
)

var (
	creditNoticeText = texttemplate.Must(texttemplate.New("credit_text").Parse(
		"Hello,\n\nA payment of ${{.Amount}} has been added to your account credit.\n" +
			"It will be applied to your next invoice.\n",
	))
	creditNoticeHTML = htmltemplate.Must(htmltemplate.New("credit_html").Parse(
		`<p>Hello,</p><p>A payment of <strong>${{.Amount}}</strong> has been added to your account credit.</p>` +
			`<p>It will be applied to your next invoice.</p>`,
	))
)

func renderCreditNotice(amount decimal.Decimal) (string, string, error) {
	data := struct{ Amount string }{Amount: amount.StringFixed(2)}

	var text, html strings.Builder
	if err := creditNoticeText.Execute(&text, data); err != nil {
		return "", "", err
	}
	if err := creditNoticeHTML.Execute(&html, data); err != nil {
		return "", "", err
	}
	return text.String(), html.String(), nil
}
