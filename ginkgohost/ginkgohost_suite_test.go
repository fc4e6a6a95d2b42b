package ginkgohost_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestGinkgohost(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "testns/ginkgohost package")
}
