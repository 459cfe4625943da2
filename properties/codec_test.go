package properties_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/james-lawrence/tpm/properties"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

func roundtrip(s *properties.Store) *properties.Store {
	buf := bytes.NewBuffer(nil)
	Expect(s.Encode(buf)).To(Succeed())
	decoded, err := properties.Decode(buf)
	Expect(err).To(Succeed())
	return decoded
}

func encoded(s *properties.Store) string {
	buf := bytes.NewBuffer(nil)
	Expect(s.Encode(buf)).To(Succeed())
	return buf.String()
}

var _ = Describe("Codec", func() {
	It("should write ordered dotted assignments", func() {
		s := properties.New()
		Expect(s.SetString(properties.P("replication-services", "alias1", "log-dir"), "/opt/thl")).To(Succeed())
		Expect(s.Set(properties.P("hosts", "db1", "roles"), properties.List("replicator", "manager"))).To(Succeed())
		Expect(s.SetString(properties.P("replication-services", properties.Defaults, "schema"), "tungsten")).To(Succeed())

		Expect(encoded(s)).To(Equal(
			"replication-services.alias1.log-dir=/opt/thl\n" +
				"replication-services.defaults.schema=tungsten\n" +
				"hosts.db1.roles[]=replicator,manager\n",
		))
	})

	DescribeTable("round trip", func(assignments ...properties.Assignment) {
		s, err := properties.Unflatten(assignments...)
		Expect(err).To(Succeed())
		decoded := roundtrip(s)
		Expect(decoded.Flatten()).To(Equal(s.Flatten()))
		Expect(encoded(decoded)).To(Equal(encoded(s)))
	},
		Entry("scalars", properties.Assignment{Path: properties.P("a", "b"), Node: properties.Scalar("c")}),
		Entry("empty scalar", properties.Assignment{Path: properties.P("a"), Node: properties.Scalar("")}),
		Entry("dotted segments", properties.Assignment{Path: properties.P("hosts", "db1.example.com", "host"), Node: properties.Scalar("db1.example.com")}),
		Entry("special characters in segments", properties.Assignment{Path: properties.P("a=b", "#c", "d[]", `e\`), Node: properties.Scalar("x=y")}),
		Entry("multiline values", properties.Assignment{Path: properties.P("motd"), Node: properties.Scalar("line1\nline2\r\n\\")}),
		Entry("lists", properties.Assignment{Path: properties.P("roles"), Node: properties.List("replicator", "manager")}),
		Entry("empty list", properties.Assignment{Path: properties.P("roles"), Node: properties.List()}),
		Entry("list of an empty element", properties.Assignment{Path: properties.P("roles"), Node: properties.List("")}),
		Entry("list elements with delimiters", properties.Assignment{Path: properties.P("roles"), Node: properties.List("a,b", "", `c\`, `\e`)}),
		Entry("mixed",
			properties.Assignment{Path: properties.P("hosts", properties.Defaults, "user"), Node: properties.Scalar("tungsten")},
			properties.Assignment{Path: properties.P("hosts", "db1", "roles"), Node: properties.List("replicator")},
			properties.Assignment{Path: properties.P("hosts", "db2", "roles"), Node: properties.List("manager", "connector")},
		),
	)

	It("should ignore comments and blank lines", func() {
		s, err := properties.Decode(bytes.NewBufferString("# comment\n\nhosts.db1.host=db1\r\n"))
		Expect(err).To(Succeed())
		Expect(s.String(properties.P("hosts", "db1", "host"))).To(Equal("db1"))
	})

	DescribeTable("malformed input", func(content string) {
		_, err := properties.Decode(bytes.NewBufferString(content))
		Expect(err).To(HaveOccurred())
	},
		Entry("missing equals", "hosts.db1.host\n"),
		Entry("empty segment", "hosts..host=x\n"),
		Entry("value and map prefix", "hosts.db1=x\nhosts.db1.host=y\n"),
		Entry("dangling escape", "hosts.db1\\=x\n"),
	)

	It("should apply overrides", func() {
		s := properties.New()
		Expect(properties.ApplyOverrides(s, "hosts.defaults.user=tungsten", "hosts.db1.roles[]=replicator,manager")).To(Succeed())
		Expect(s.String(properties.P("hosts", "db1", "user"))).To(Equal("tungsten"))
		Expect(s.Strings(properties.P("hosts", "db1", "roles"))).To(Equal([]string{"replicator", "manager"}))
		Expect(properties.ApplyOverrides(s, "garbage")).To(HaveOccurred())
	})

	It("should parse paths written by String", func() {
		p := properties.P("hosts", "db1.example.com", "a=b")
		parsed, err := properties.ParsePath(p.String())
		Expect(err).To(Succeed())
		Expect(parsed).To(Equal(p))
	})

	Describe("persistence", func() {
		It("should load an empty store from a missing file", func() {
			s, err := properties.Load(filepath.Join(GinkgoT().TempDir(), "missing.properties"))
			Expect(err).To(Succeed())
			Expect(s.Flatten()).To(BeEmpty())
		})

		It("should atomically save and reload", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "nested", "cluster.properties")
			s := properties.New()
			Expect(s.SetString(properties.P("hosts", "db1", "host"), "db1")).To(Succeed())
			Expect(s.Save(path)).To(Succeed())

			Expect(s.SetString(properties.P("hosts", "db1", "user"), "tungsten")).To(Succeed())
			Expect(s.Save(path)).To(Succeed())

			loaded, err := properties.Load(path)
			Expect(err).To(Succeed())
			Expect(loaded.Flatten()).To(Equal(s.Flatten()))

			entries, err := os.ReadDir(filepath.Dir(path))
			Expect(err).To(Succeed())
			Expect(entries).To(HaveLen(1))
		})
	})
})
