// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package sysinfo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUID identifies the processor package. Identifier follows the canonical
// "<vendor> Family F Model M Stepping S" layout, from which family, model and
// stepping can be parsed back when only the free-form string is known.
type CPUID struct {
	Vendor       string
	Name         string
	Identifier   string
	Family       string
	Model        string
	Stepping     string
	Is64Bit      bool
	VendorFreqHz int64
}

var (
	brandFreq = regexp.MustCompile(`@ (.*)$`)
	hertz     = regexp.MustCompile(`(\d+(?:\.\d+)?) ?([kKMGT]?Hz)`)
)

var hertzMultipliers = map[string]int64{
	"Hz":  1,
	"kHz": 1_000,
	"KHz": 1_000,
	"MHz": 1_000_000,
	"GHz": 1_000_000_000,
	"THz": 1_000_000_000_000,
}

// ReadCPUID queries the platform for processor identification.
func ReadCPUID() (CPUID, error) {
	infos, err := cpu.Info()
	if err != nil {
		return CPUID{}, errors.Wrap(err, "reading cpu info")
	}
	if len(infos) == 0 {
		return CPUID{}, errors.New("no cpu info reported")
	}
	info := infos[0]

	is64 := strconv.IntSize == 64
	id := CPUID{
		Vendor:   info.VendorID,
		Name:     info.ModelName,
		Family:   info.Family,
		Model:    info.Model,
		Stepping: strconv.Itoa(int(info.Stepping)),
		Is64Bit:  is64,
	}
	id.Identifier = BuildIdentifier(id.Vendor, id.Family, id.Model, id.Stepping, is64)
	id.VendorFreqHz = vendorFreq(info.ModelName, info.Mhz)
	return id, nil
}

// BuildIdentifier assembles the canonical identifier string. GenuineIntel
// processors are reported as Intel64/x86 rather than by vendor id.
func BuildIdentifier(vendor, family, model, stepping string, is64Bit bool) string {
	prefix := vendor
	if vendor == "GenuineIntel" {
		if is64Bit {
			prefix = "Intel64"
		} else {
			prefix = "x86"
		}
	}
	return fmt.Sprintf("%s Family %s Model %s Stepping %s", prefix, family, model, stepping)
}

// ParseIdentifierField extracts the value following the given key ("Family",
// "Model" or "Stepping") out of an identifier string. Returns an empty string
// when the key is not present.
func ParseIdentifierField(identifier, key string) string {
	fields := strings.Fields(identifier)
	for i, f := range fields {
		if f == key && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// ParseHertz converts a frequency string such as "2.40GHz" into Hz.
// Returns -1 when the string is not a recognizable frequency.
func ParseHertz(s string) int64 {
	m := hertz.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value < 0 {
		return -1
	}
	mult, ok := hertzMultipliers[m[2]]
	if !ok {
		return -1
	}
	return int64(value * float64(mult))
}

// vendorFreq extracts the vendor-advertised frequency from the brand string
// trailer ("... @ 3.40GHz"), falling back to the reported clock speed.
func vendorFreq(brand string, mhz float64) int64 {
	if m := brandFreq.FindStringSubmatch(brand); m != nil {
		if hz := ParseHertz(m[1]); hz > 0 {
			return hz
		}
	}
	if mhz > 0 {
		return int64(mhz * 1_000_000)
	}
	return -1
}
