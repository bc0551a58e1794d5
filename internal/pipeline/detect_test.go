package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"courierval/internal"
)

func TestIsValidationRequest(t *testing.T) {
	accepted := []string{
		"VALIDAÇÃO CORREIOS - ALELO",
		"Validacao correios - CLIENTE_X",
		"valdacao correios",
		"VALDAÇÃO",
		"Vadação Correios",
		"VADACAO",
		"Validacão correios",
		"VALIDAÇAO",
		"RE: VALI DACAO CORREIOS",
		"VALIDA CAO",
		"VALIDDACAO correios",
		"VALIACAO",
	}
	for _, subject := range accepted {
		t.Run(subject, func(t *testing.T) {
			assert.True(t, IsValidationRequest(subject))
		})
	}

	rejected := []string{
		"",
		"Invoice Q3 Report",
		"AVALIACAO de desempenho",
		"Validade do contrato",
		"VALOR total",
	}
	for _, subject := range rejected {
		t.Run("reject "+subject, func(t *testing.T) {
			assert.False(t, IsValidationRequest(subject))
		})
	}
}

func TestClassifyVariant(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		body    string
		want    internal.ClientVariant
	}{
		{name: "hyphen kit", subject: "VALIDAÇÃO CORREIOS - ALELO-KIT", want: internal.VariantKit},
		{name: "underscore kit", subject: "Validacao correios alelo_kit", want: internal.VariantKit},
		{name: "spaced kit", subject: "VALIDACAO ALELO KIT", want: internal.VariantKit},
		{name: "plain family", subject: "VALIDAÇÃO CORREIOS - ALELO", want: internal.VariantPlain},
		{name: "family in body", subject: "Validação correios", body: "cliente ALELO", want: internal.VariantPlain},
		{name: "kit only in body", subject: "VALIDACAO ALELO", body: "ALELO-KIT", want: internal.VariantPlain},
		{name: "kit glued to family", subject: "VALIDAÇÃO CORREIOS - ALELOKIT", want: internal.VariantKit},
		{name: "kit with suffix", subject: "VALIDACAO ALELO KIT2", want: internal.VariantKit},
		{name: "kit plural", subject: "VALIDACAO ALELO KITS", want: internal.VariantKit},
		{name: "no family", subject: "VALIDACAO CORREIOS - OUTRO-KIT", want: internal.VariantNone},
		{name: "empty", want: internal.VariantNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyVariant(tc.subject, tc.body))
		})
	}
}

func TestKeyVariant(t *testing.T) {
	assert.Equal(t, internal.VariantKit, KeyVariant("ALELO-KIT"))
	assert.Equal(t, internal.VariantKit, KeyVariant("ALELOKIT"))
	assert.Equal(t, internal.VariantPlain, KeyVariant("ALELO"))
	assert.Equal(t, internal.VariantNone, KeyVariant("CLIENTE_X"))
}
