package http

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/sirupsen/logrus"
)

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Order received</title></head>
<body>
<h1>Thank you, your payment was received.</h1>
<p>Order: {{.OrderID}}</p>
{{if .PaymentID}}<p>Payment: {{.PaymentID}}</p>{{end}}
{{if .PaymentMethod}}<p>Method: {{.PaymentMethod}}</p>{{end}}
</body>
</html>`))

var failPage = template.Must(template.New("fail").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Payment failed</title></head>
<body>
<h1>Your payment could not be completed.</h1>
{{if .ErrorMessage}}<p>{{.ErrorMessage}}</p>{{end}}
{{if .OrderID}}<p>Reference: {{.OrderID}}</p>{{end}}
</body>
</html>`))

type landingData struct {
	OrderID       string
	PaymentID     string
	PaymentMethod string
	ErrorMessage  string
}

func SuccessPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	renderPage(w, successPage, landingData{
		OrderID:       q.Get("orderId"),
		PaymentID:     q.Get("paymentId"),
		PaymentMethod: q.Get("paymentMethod"),
	})
}

func FailPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	renderPage(w, failPage, landingData{
		OrderID:      q.Get("orderId"),
		ErrorMessage: q.Get("errorMessage"),
	})
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data landingData) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logrus.WithError(err).Error("failed to render page")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondHTML(w, http.StatusOK, buf.String())
}
