package properties_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/james-lawrence/tpm/properties"
)

var _ = Describe("Store", func() {
	var (
		store *properties.Store
	)

	BeforeEach(func() {
		store = properties.New()
	})

	Describe("default inheritance", func() {
		It("should resolve the defaults member when the member is missing the key", func() {
			Expect(store.SetString(properties.P("svc", properties.Defaults, "port"), "3306")).To(Succeed())
			Expect(store.SetString(properties.P("svc", "alias1", "log-dir"), "/opt/logs")).To(Succeed())

			Expect(store.String(properties.P("svc", "alias1", "port"))).To(Equal("3306"))
			Expect(store.String(properties.P("svc", "alias2", "port"))).To(Equal("3306"))
		})

		It("should shadow the default once the member sets the key", func() {
			Expect(store.SetString(properties.P("svc", properties.Defaults, "port"), "3306")).To(Succeed())
			Expect(store.SetString(properties.P("svc", "alias1", "port"), "13306")).To(Succeed())

			Expect(store.String(properties.P("svc", "alias1", "port"))).To(Equal("13306"))
			Expect(store.String(properties.P("svc", "alias2", "port"))).To(Equal("3306"))
		})

		It("should fail with missing property when neither the member nor defaults resolve", func() {
			_, err := store.Get(properties.P("svc", "alias1", "port"))
			Expect(properties.IsMissing(err)).To(BeTrue())
			Expect(err).To(MatchError("missing property: svc.alias1.port"))
		})

		It("should not inherit for shorter paths", func() {
			Expect(store.SetString(properties.P(properties.Defaults, "port"), "3306")).To(Succeed())
			_, err := store.Get(properties.P("port", "x"))
			Expect(properties.IsMissing(err)).To(BeTrue())
		})

		It("should inherit nested keys", func() {
			Expect(store.SetString(properties.P("svc", properties.Defaults, "thl", "port"), "2112")).To(Succeed())
			Expect(store.String(properties.P("svc", "alias1", "thl", "port"))).To(Equal("2112"))
		})
	})

	It("should delete nodes when set to nil", func() {
		p := properties.P("svc", properties.Defaults, "port")
		Expect(store.SetString(p, "3306")).To(Succeed())
		Expect(store.Set(p, nil)).To(Succeed())
		_, err := store.Get(p)
		Expect(properties.IsMissing(err)).To(BeTrue())
		Expect(store.Delete(properties.P("does", "not", "exist"))).To(Succeed())
	})

	It("should return the fallback from GetOr", func() {
		Expect(store.GetOr(properties.P("a", "b"), properties.Scalar("x")).Value()).To(Equal("x"))
		Expect(store.StringOr(properties.P("a", "b"), "y")).To(Equal("y"))
	})

	Describe("invalid paths", func() {
		BeforeEach(func() {
			Expect(store.SetString(properties.P("hosts", "db1"), "scalar")).To(Succeed())
		})

		It("should reject reads through a scalar prefix", func() {
			_, err := store.Get(properties.P("hosts", "db1", "user"))
			Expect(properties.IsInvalidPath(err)).To(BeTrue())
		})

		It("should reject writes through a scalar prefix", func() {
			err := store.SetString(properties.P("hosts", "db1", "user"), "tungsten")
			Expect(properties.IsInvalidPath(err)).To(BeTrue())
		})

		It("should reject empty paths and segments", func() {
			Expect(properties.IsInvalidPath(store.SetString(properties.P(), "x"))).To(BeTrue())
			Expect(properties.IsInvalidPath(store.SetString(properties.P("a", ""), "x"))).To(BeTrue())
		})

		It("should reject scalar reads of maps", func() {
			_, err := store.String(properties.P("hosts"))
			Expect(properties.IsInvalidPath(err)).To(BeTrue())
		})
	})

	It("should enumerate members excluding defaults in insertion order", func() {
		Expect(store.SetString(properties.P("hosts", "db2", "host"), "db2")).To(Succeed())
		Expect(store.SetString(properties.P("hosts", properties.Defaults, "user"), "tungsten")).To(Succeed())
		Expect(store.SetString(properties.P("hosts", "db1", "host"), "db1")).To(Succeed())
		Expect(store.SetString(properties.P("hosts", "db2", "user"), "other")).To(Succeed())

		Expect(store.Members("hosts")).To(Equal([]string{"db2", "db1"}))
		Expect(store.Members("missing")).To(BeEmpty())
	})

	It("should split scalars into strings", func() {
		Expect(store.SetString(properties.P("a"), "x, y,,z")).To(Succeed())
		Expect(store.Set(properties.P("b"), properties.List("x", "y"))).To(Succeed())
		Expect(store.Strings(properties.P("a"))).To(Equal([]string{"x", "y", "z"}))
		Expect(store.Strings(properties.P("b"))).To(Equal([]string{"x", "y"}))
	})

	It("should parse booleans and integers", func() {
		Expect(store.SetString(properties.P("a"), "true")).To(Succeed())
		Expect(store.SetString(properties.P("b"), "10")).To(Succeed())
		Expect(store.SetString(properties.P("c"), "ten")).To(Succeed())
		Expect(store.Bool(properties.P("a"))).To(BeTrue())
		Expect(store.Bool(properties.P("missing"))).To(BeFalse())
		Expect(store.Int(properties.P("b"))).To(Equal(10))
		_, err := store.Int(properties.P("c"))
		Expect(err).To(HaveOccurred())
	})

	It("should clone deeply", func() {
		Expect(store.Set(properties.P("a", "b"), properties.List("x"))).To(Succeed())
		dup := store.Clone()
		Expect(dup.SetString(properties.P("a", "b"), "changed")).To(Succeed())
		Expect(dup.SetString(properties.P("a", "c"), "added")).To(Succeed())

		Expect(store.Strings(properties.P("a", "b"))).To(Equal([]string{"x"}))
		Expect(store.Members("a")).To(Equal([]string{"b"}))
	})

	It("should return copies from Get", func() {
		Expect(store.SetString(properties.P("a", "b", "c"), "x")).To(Succeed())
		n, err := store.Get(properties.P("a"))
		Expect(err).To(Succeed())
		Expect(n.Kind()).To(Equal(properties.KindMap))
		Expect(n.Keys()).To(Equal([]string{"b"}))
		child, ok := n.Child("b")
		Expect(ok).To(BeTrue())
		Expect(child.Kind()).To(Equal(properties.KindMap))
	})

	It("should serialize concurrent read-modify-write sequences", func() {
		var wg sync.WaitGroup
		counter := properties.P("cluster", "counter")
		Expect(store.SetString(counter, "0")).To(Succeed())

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(store.Update(func(e properties.Editor) error {
					v, err := e.Int(counter)
					if err != nil {
						return err
					}
					return e.Set(counter, properties.Scalar(itoa(v+1)))
				})).To(Succeed())
			}()
		}
		wg.Wait()

		Expect(store.Int(counter)).To(Equal(50))
	})
})
