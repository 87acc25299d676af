// Package suite runs dependency-ordered test groups on top of the standard
// testing package.
//
// A Suite collects groups and test functions, orders them with the orderer
// package and gates every test with a guard.Guard:
//
//	func TestCheckout(t *testing.T) {
//		s := suite.New()
//		users := s.Group("acme.UserTests")
//		users.Test("Create", testCreateUser)
//
//		cart := s.Group("acme.CartTests", suite.DependsOnGroup("acme.UserTests"))
//		cart.Test("Open", testOpenCart)
//		cart.Test("Add", testAddItem, suite.DependsOn("Open"))
//
//		s.Run(t)
//	}
//
// Groups become subtests named by group ID and tests become nested
// subtests. A test whose dependencies have not passed fails with the
// guard's *guard.DependencyError and its body is never called.
package suite
