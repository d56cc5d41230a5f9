package instance

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"q.log/allocator/portfolio"
)

type assetFile struct {
	Assets []portfolio.Asset `yaml:"assets"`
}

// ReadAssets loads an asset universe from a YAML document of the form
//
//	assets:
//	  - {id: 1, name: AAPL, price: 150.25, return: 0.12, volatility: 0.20}
//
// Unknown keys are rejected.
func ReadAssets(path string) ([]portfolio.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening assets file")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var doc assetFile
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrapf(err, "decoding assets file %s", path)
	}
	if len(doc.Assets) == 0 {
		return nil, errors.Errorf("assets file %s lists no assets", path)
	}
	return doc.Assets, nil
}

// WriteAssets stores assets in the format read by ReadAssets.
func WriteAssets(path string, assets []portfolio.Asset) error {
	out, err := yaml.Marshal(assetFile{Assets: assets})
	if err != nil {
		return errors.Wrap(err, "encoding assets")
	}
	return errors.Wrapf(os.WriteFile(path, out, 0o644), "writing assets file %s", path)
}
