package domain

// Admin is an operator allowed to use the admin routes.
type Admin struct {
	ID        int64  `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	Password  string `db:"password" json:"-"`
	CreatedAt string `db:"created_at" json:"created_at,omitempty"`
}
