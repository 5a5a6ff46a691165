package chanio

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

//go:generate mockgen -destination "mock_chanio_test.go" -package $GOPACKAGE -write_package_comment=false github.com/lowcore/nucleus/kernel/chanio System

func TestChanio(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Channel I/O Suite")
}
