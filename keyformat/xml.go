package keyformat

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/bastionzero/rsakit"
)

// rsaKeyValue is the XML-DSig RSAKeyValue element, extended with the private fields .NET writes
type rsaKeyValue struct {
	XMLName  xml.Name `xml:"RSAKeyValue"`
	Modulus  string   `xml:"Modulus"`
	Exponent string   `xml:"Exponent"`
	P        string   `xml:"P,omitempty"`
	Q        string   `xml:"Q,omitempty"`
	DP       string   `xml:"DP,omitempty"`
	DQ       string   `xml:"DQ,omitempty"`
	InverseQ string   `xml:"InverseQ,omitempty"`
	D        string   `xml:"D,omitempty"`
}

func b64(x *big.Int) string {
	return base64.StdEncoding.EncodeToString(x.Bytes())
}

func marshalXML(key *rsakit.Key, private bool) ([]byte, error) {
	v := rsaKeyValue{Modulus: b64(key.N), Exponent: b64(key.E)}
	if private {
		full, err := twoPrime(key)
		if err != nil {
			return nil, err
		}
		v.P, v.Q = b64(full.Primes[0]), b64(full.Primes[1])
		v.DP, v.DQ = b64(full.Exponents[0]), b64(full.Exponents[1])
		v.InverseQ = b64(full.Coefficients[0])
		v.D = b64(full.D)
	}
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RSAKeyValue: %w", err)
	}
	return append(out, '\n'), nil
}

// readXMLFields collects the base64 text of every child element of RSAKeyValue, keyed by lower
// cased element name
func readXMLFields(data []byte) (map[string]*big.Int, bool, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	fields := map[string]*big.Int{}
	inRoot, current := false, ""
	var text strings.Builder

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, inRoot, fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			switch {
			case !inRoot && name == "rsakeyvalue":
				inRoot = true
			case !inRoot:
				return nil, false, fmt.Errorf("%w: root element is %s", rsakit.ErrMalformedKey, t.Name.Local)
			default:
				current = name
				text.Reset()
			}
		case xml.CharData:
			if current != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if current == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(text.String()), ""))
			if err != nil {
				return nil, true, fmt.Errorf("%w: element %s: %w", rsakit.ErrMalformedKey, current, err)
			}
			fields[current] = new(big.Int).SetBytes(raw)
			current = ""
		}
	}

	if !inRoot {
		return nil, false, fmt.Errorf("%w: no RSAKeyValue element", rsakit.ErrMalformedKey)
	}
	return fields, true, nil
}

func parseXML(data []byte, _ *Options) (*rsakit.Key, bool, error) {
	if !bytes.Contains(bytes.ToLower(data), []byte("<rsakeyvalue")) {
		return nil, false, fmt.Errorf("%w: not an RSAKeyValue document", rsakit.ErrMalformedKey)
	}
	fields, recognized, err := readXMLFields(data)
	if err != nil {
		return nil, recognized, err
	}

	n, e := fields["modulus"], fields["exponent"]
	if n == nil || e == nil || n.Sign() == 0 || e.Sign() == 0 {
		return nil, true, fmt.Errorf("%w: RSAKeyValue without Modulus and Exponent", rsakit.ErrMalformedKey)
	}
	key := &rsakit.Key{N: n, E: e, D: fields["d"]}
	if key.D == nil {
		return key, true, nil
	}

	p, q := fields["p"], fields["q"]
	if p == nil || q == nil {
		// private exponent alone still works, just without CRT
		return key, true, nil
	}
	key.Primes = []*big.Int{p, q}
	dp, dq, qinv := fields["dp"], fields["dq"], fields["inverseq"]
	if dp != nil && dq != nil && qinv != nil {
		key.Exponents = []*big.Int{dp, dq}
		key.Coefficients = []*big.Int{qinv}
		return key, true, nil
	}
	if err := key.Precompute(); err != nil {
		return nil, true, err
	}
	return key, true, nil
}
