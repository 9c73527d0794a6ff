package ec

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
)

const (
	soapEnvNS  = "http://schemas.xmlsoap.org/soap/envelope/"
	checkVatNS = "urn:ec.europa.eu:taxud:vies:services:checkVat:types"
)

type checkVatRequest struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapEnv string   `xml:"xmlns:soapenv,attr"`
	Types   string   `xml:"xmlns:urn,attr"`
	Body    struct {
		CheckVat struct {
			CountryCode string `xml:"urn:countryCode"`
			VATNumber   string `xml:"urn:vatNumber"`
		} `xml:"urn:checkVat"`
	} `xml:"soapenv:Body"`
}

func checkVatEnvelope(country, number string) ([]byte, error) {
	var env checkVatRequest
	env.SoapEnv = soapEnvNS
	env.Types = checkVatNS
	env.Body.CheckVat.CountryCode = country
	env.Body.CheckVat.VATNumber = number
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode checkVat envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

type checkVatResult struct {
	CountryCode string `xml:"countryCode" json:"countryCode"`
	VATNumber   string `xml:"vatNumber"   json:"vatNumber"`
	RequestDate string `xml:"requestDate" json:"requestDate"`
	Valid       bool   `xml:"valid"       json:"valid"`
	Name        string `xml:"name"        json:"name"`
	Address     string `xml:"address"     json:"address"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type checkVatResponse struct {
	Body struct {
		Fault  *soapFault      `xml:"Fault"`
		Result *checkVatResult `xml:"checkVatResponse"`
	} `xml:"Body"`
}

// decodeCheckVat parses a checkVat reply. Faults are remote errors whatever
// the status they arrive with.
func decodeCheckVat(resp crawler.Response) (checkVatResult, error) {
	var env checkVatResponse
	err := xml.Unmarshal(resp.Body, &env)
	if err == nil && env.Body.Fault != nil {
		desc := strings.TrimSpace(env.Body.Fault.String)
		if desc == "" {
			desc = strings.TrimSpace(env.Body.Fault.Code)
		}
		return checkVatResult{}, crawler.Remote(desc)
	}
	if !resp.OK() {
		return checkVatResult{}, crawler.NewStatusError(resp)
	}
	if err != nil {
		return checkVatResult{}, crawler.Malformed("checkVat response", err)
	}
	if env.Body.Result == nil {
		return checkVatResult{}, crawler.Malformed("checkVat response", errors.New("missing checkVatResponse"))
	}
	return *env.Body.Result, nil
}
