package schema

import "context"

// Provider describes the tables the model should write SQL against.
type Provider interface {
	DescribeSchema(ctx context.Context) (string, error)
}

const MockDDL = `CREATE TABLE customers (
    id INT PRIMARY KEY,
    name VARCHAR(100),
    email VARCHAR(100),
    created_at TIMESTAMP
);

CREATE TABLE orders (
    id INT PRIMARY KEY,
    customer_id INT,
    product_name VARCHAR(100),
    quantity INT,
    order_date TIMESTAMP,
    FOREIGN KEY (customer_id) REFERENCES customers(id)
);`

// Mock serves the fixed customers/orders schema.
type Mock struct{}

func (Mock) DescribeSchema(context.Context) (string, error) {
	return MockDDL, nil
}
